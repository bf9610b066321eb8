package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lms/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanner, recommendation engine, and HTTP control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.scanner.Run(runCtx)
	a.jobs.Start(runCtx)
	defer a.jobs.Stop()

	router := api.New(api.Deps{
		DB:      a.db,
		Scanner: a.scanner,
		Artwork: a.artwork,
		Engine:  a.engine,
		Jobs:    a.jobs,
	})

	server := &http.Server{
		Addr:    a.cfg.Addr,
		Handler: router,
	}

	go func() {
		a.logger.Info("lmsd: listening", "addr", a.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("lmsd: server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("lmsd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("lmsd: shutdown: %w", err)
	}
	a.logger.Info("lmsd: shutdown complete")
	return nil
}
