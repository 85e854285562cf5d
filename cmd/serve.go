package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/theapemachine/docprovider/pkg/service"
	"github.com/theapemachine/docprovider/pkg/tools"
)

var (
	hostFlag      string
	portFlag      int
	withMCPFlag   bool
	transportFlag string
	version       = "0.1.0"

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the document namespace",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveHTTP(cmd)
		},
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP",
		Long:  longMCP,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMCP(cmd)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(mcpCmd)

	serveCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (default server.port)")
	serveCmd.PersistentFlags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (default server.host)")
	serveCmd.Flags().BoolVar(&withMCPFlag, "with-mcp", true, "Also serve MCP on /mcp")
	mcpCmd.Flags().StringVarP(&transportFlag, "transport", "t", "stdio", "stdio or sse")
}

func listenAddr() string {
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}
	return cfg.Addr()
}

func serveHTTP(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStack(ctx, cfg, stackOptions{serving: true})
	if err != nil {
		return err
	}

	opts := []service.Option{service.WithMetrics(st.metrics)}

	if st.auth != nil {
		opts = append(opts, service.WithAuth(st.auth))
	}

	if withMCPFlag {
		opts = append(opts, service.WithMCP(tools.NewHTTPHandler(tools.NewMCPServer(st.provider, version), st.auth)))
	}

	srv := service.NewServer(st.provider, st.hub, opts...)
	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Start(listenAddr())
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("shutdown failed", "error", shutdownErr)
	}

	if closeErr := st.Close(shutdownCtx); closeErr != nil {
		log.Error("failed to close provider", "error", closeErr)
	}

	return err
}

/*
serveMCP runs the tools for a single local client. Stdio keeps stdout for
the protocol, so logs must go to a file or stderr.
*/
func serveMCP(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStack(ctx, cfg, stackOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error("failed to close provider", "error", err)
		}
	}()

	mcpSrv := tools.NewMCPServer(st.provider, version)

	switch transportFlag {
	case "stdio":
		return server.ServeStdio(mcpSrv)
	case "sse":
		sseSrv := server.NewSSEServer(mcpSrv)
		errCh := make(chan error, 1)

		go func() {
			errCh <- sseSrv.Start(listenAddr())
		}()

		log.Info("serving mcp over sse", "addr", listenAddr())

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sseSrv.Shutdown(shutdownCtx)
		}
	}

	return fmt.Errorf("unknown transport %q", transportFlag)
}

var longServe = `
Serve the configured roots over HTTP: JSON-RPC on /rpc, REST under
/documents and /roots, change events on /events and MCP on /mcp.

Examples:
  # Serve on the configured address
  docprovider serve

  # Serve on all interfaces, port 8080
  docprovider serve --host 0.0.0.0 --port 8080
`

var longMCP = `
Serve the document tools to a single MCP client.

Examples:
  # For an editor or agent that launches its tools over stdio
  docprovider serve mcp

  # Over SSE on the configured address
  docprovider serve mcp --transport sse
`
