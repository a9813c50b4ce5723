package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/api"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "serve",
	Short:   "Serve the worktree HTTP API",
	Long: `Run the HTTP API over the current repository. Endpoints mirror the CLI:
list, create, inspect, transition, and remove worktrees. Binds localhost
by default; the API carries no authentication of its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := serveHost
		if host == "" {
			host = settings.APIHost
		}
		port := servePort
		if port == 0 {
			port = settings.APIPort
		}
		addr := fmt.Sprintf("%s:%d", host, port)

		srv := api.NewServer(mgr)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()
		info("serving worktree API on http://%s", addr)

		select {
		case err := <-errCh:
			return err
		case <-rootCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port (default from config, 8000)")
	rootCmd.AddCommand(serveCmd)
}
