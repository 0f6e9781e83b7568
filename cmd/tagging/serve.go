package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tagging-mcp/internal/mcp"
	"tagging-mcp/internal/tools"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tagging tools over MCP (stdio or HTTP)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := flags.deps(nil)
			if err != nil {
				return err
			}
			if transport == "" {
				transport = deps.Config.Transport
			}
			if port == 0 {
				port = deps.Config.Port
			}
			srv := mcp.NewServer(deps.Log, deps.Tools, tools.Definitions())

			switch transport {
			case "stdio":
				return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
			case "http":
				return serveHTTP(cmd.Context(), deps.Log, srv, port, deps.Config.HTTPTimeout)
			default:
				return fmt.Errorf("invalid transport: %s (valid options: stdio, http)", transport)
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "stdio or http; overrides TRANSPORT")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port; overrides PORT")
	return cmd
}

func serveHTTP(ctx context.Context, log *slog.Logger, srv *mcp.Server, port int, timeout time.Duration) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mcp.NewHTTPHandler(log, srv, timeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("mcp server listening", "addr", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
