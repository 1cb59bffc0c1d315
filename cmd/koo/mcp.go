package main

import (
	"os/signal"
	"syscall"
	"time"

	"koo/internal/initial"
	mcpserver "koo/internal/modules/ai/infrastructure/mcp/server"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *cliOptions) *cobra.Command {
	var transport, addr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "serve the rag_ask and rag_ingest_text tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.newApp(ctx, initial.Options{EnableQueue: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if transport == "" {
				transport = app.Conf.MCPConfig.Transport
			}
			if addr == "" {
				addr = app.Conf.MCPConfig.Addr
			}
			return mcpserver.Serve(ctx, newMCPServer(app), transport, addr)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "stdio or sse (default from mcpConfig)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for sse")
	return cmd
}

func newMCPServer(app *initial.App) *server.MCPServer {
	c := app.Conf.MCPConfig
	return mcpserver.NewRAGMCPServer(mcpserver.ServerConfig{
		Name:            c.Name,
		Version:         c.Version,
		ToolCallTimeout: time.Duration(c.ToolCallTimeoutSeconds) * time.Second,
	}, mcpserver.Dependencies{
		AskSvc:         app.AskService,
		IngestSvc:      app.IngestService,
		AsyncIngestSvc: app.AsyncIngestService,
	})
}
