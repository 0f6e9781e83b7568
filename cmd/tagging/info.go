package main

import (
	"github.com/spf13/cobra"
)

func infoCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show supported providers, default models and features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := flags.deps(nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deps.Tools.Info())
		},
	}
}
