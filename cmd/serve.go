package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mist/internal/config"
	"github.com/conneroisu/mist/internal/demo"
	"github.com/conneroisu/mist/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the live server",
	Long: `Start the live server. The application runs on the server and every
change it makes to the page is streamed to connected browsers, which send
their events back over a WebSocket.

Examples:
  mist serve                          # Serve on localhost:8080
  mist serve -p 3000                  # Serve on port 3000
  mist serve --state state.yml -w     # Load state.yml and reload it on change`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, ServerFlags, StateFlags)
	serveCmd.Flags().String("target", "#app", "Selector of the mount point")
	serveCmd.Flags().String("policy", "accumulate", "Store subscription policy (accumulate, resubscribe)")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":   "server.port",
		"host":   "server.host",
		"state":  "app.state_file",
		"watch":  "watch.enabled",
		"target": "app.target",
		"policy": "app.policy",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.ValidateFlags(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cmd, cfg)

	store, err := loadStore(cfg, cfg.App.StateFile, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, demo.Routes(), store, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down server...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", cfg.Addr())
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
