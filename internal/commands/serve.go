package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/server"
)

// shutdownTimeout bounds the graceful stop of `chathist serve`
const shutdownTimeout = 10 * time.Second

var (
	serveAddr  string
	serveToken string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local database over HTTP",
	Long: `Serve the local chat database as a JSON API so other machines can use
it with --remote.

Endpoints:
  GET    /api/v1/chats?user=<id>&cursor=<id>&limit=<n>
  GET    /api/v1/chats/{id}
  DELETE /api/v1/chats/{id}
  PATCH  /api/v1/chats/{id}      {"title": "..."}
  GET    /health

When server.token is set, requests must carry it as a bearer token or in the
chathist_session cookie.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runServe(ctx, deps, cmd.OutOrStdout())
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Require this bearer token (default server.token)")
}

func runServe(ctx context.Context, deps *Dependencies, out io.Writer) error {
	st, err := deps.requireStore("serve")
	if err != nil {
		return err
	}

	cfg := server.Config{
		Addr:          deps.Config.Server.Addr,
		Token:         deps.Config.Server.Token,
		RatePerSecond: deps.Config.Server.RatePerSecond,
		Burst:         deps.Config.Server.Burst,
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveToken != "" {
		cfg.Token = serveToken
	}

	logger := logging.Component("serve")
	srv := server.New(cfg, st)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Fprintf(out, "chathist API listening on http://%s\n", cfg.Addr)
	if cfg.Token != "" {
		fmt.Fprintf(out, "  Token: %s\n", logging.MaskSecret(cfg.Token))
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-serverErr:
		return fmt.Errorf("API server failed: %w", err)
	}

	fmt.Fprintln(out, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}
	return nil
}
