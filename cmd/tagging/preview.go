package main

import (
	"github.com/spf13/cobra"

	"tagging-mcp/internal/tools"
)

func previewCmd(flags *rootFlags) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview <csv>",
		Short: "Show the columns, row count and first rows of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := flags.deps(nil)
			if err != nil {
				return err
			}
			res, err := deps.Tools.Preview(cmd.Context(), tools.PreviewParams{CSVPath: args[0], Rows: rows})
			if err != nil {
				return toolError(cmd.OutOrStdout(), tools.NewFailure(err))
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "number of rows to show (default PREVIEW_ROWS)")
	return cmd
}
