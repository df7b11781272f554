package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/quizforge/internal/httpapi"
	"github.com/abhisek/quizforge/internal/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.HTTPAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue := jobs.NewQueue(a.jobStore, a.pipeline, a.cfg.QueueWorkers)
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("start job queue: %w", err)
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.New(a.pipeline, a.router, a.cache, queue, a.jobStore).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (provider %s)\n", addr, a.router.Current())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			queue.Stop()
			return err
		case <-ctx.Done():
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		queue.Stop()

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides QUIZFORGE_HTTP_ADDR)")
}
