package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := startApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if addr == "" {
				addr = app.cfg.Server.Addr
			}
			log := app.Logger()
			server := &http.Server{
				Addr:              addr,
				Handler:           NewServer(app.Orchestrator(), log).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("shutting down http server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			eg.Go(func() error {
				log.Info().Str("addr", addr).Msg("starting http server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}
