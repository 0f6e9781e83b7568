package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagging-mcp/internal/app"
	"tagging-mcp/internal/config"
	"tagging-mcp/internal/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "tagging",
		Short:         "Tag CSV rows with LLM structured outputs",
		Long:          "tagging classifies the text column of a CSV file against a taxonomy, one LLM request per row.\nRun `tagging serve` to expose the tools over MCP.",
		Version:       tools.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, text); overrides LOG_FORMAT")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(previewCmd(flags))
	cmd.AddCommand(tagCmd(flags))
	cmd.AddCommand(infoCmd(flags))
	cmd.AddCommand(watchCmd(flags))
	return cmd
}

// loadConfig reads .env and the environment, then applies command-line overrides.
func (f *rootFlags) loadConfig() (config.Config, error) {
	if err := app.LoadEnv(); err != nil {
		return config.Config{}, err
	}
	cfg := config.Load()
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	return cfg, nil
}

func (f *rootFlags) deps(progress func(done, total int)) (app.Deps, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return app.Deps{}, err
	}
	deps, err := app.BuildFrom(cfg, progress)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		return app.Deps{}, err
	}
	return deps, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toolError turns a failed tool result into a command error after printing it.
func toolError(w io.Writer, res any) error {
	if err := printJSON(w, res); err != nil {
		return err
	}
	switch r := res.(type) {
	case tools.Failure:
		return fmt.Errorf("%s: %s", r.Error.Kind, r.Error.Message)
	case tools.TagResult:
		if r.Error != nil {
			return fmt.Errorf("%s: %s", r.Error.Kind, r.Error.Message)
		}
	}
	return fmt.Errorf("tool failed")
}
