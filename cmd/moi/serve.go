package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/moi-etl/internal/httpx"
	"github.com/AngelCh415/moi-etl/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()
		mSvc := metrics.NewService(proc.Cumulative())

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           httpx.NewRouter(logger, proc, mSvc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()

		logger.Info("starting server", slog.String("port", cfg.Server.Port), slog.String("db", cfg.Storage.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("err", err.Error()))
			return err
		}
		return nil
	},
}
