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
	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/api"
	"github.com/zerox80/speicherwald/internal/config"
	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/job"
	"github.com/zerox80/speicherwald/internal/store"
)

var (
	serveAddr   string
	serveDBPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan engine as an HTTP service",
	RunE:  runServe,
}

var tunableFlags *config.TunableFlags

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "./speicherwald.db", "path to the SQLite database")
	tunableFlags = config.RegisterTunableFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(serveDBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.New()
	manager := job.New(st, bus, tunableFlags.Resolve(), logger.Named("job"))
	server := api.New(manager, bus, st, logger.Named("api"))

	httpServer := &http.Server{Addr: serveAddr, Handler: server}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveAddr), zap.String("db", serveDBPath))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
		logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
