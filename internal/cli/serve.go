package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/pkgfeed/internal/logger"
	"github.com/glorpus-work/pkgfeed/pkg/feedhttp"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the feed's HTTP surface",
		Long:  "Start the feed engine's background rebuild/persist timers and serve the HTTP surface until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, listenAddress)
		},
	}

	cmd.Flags().StringVar(&listenAddress, "listen", "", "address to listen on (overrides config)")

	return cmd
}

const shutdownGracePeriod = 10 * time.Second

func runServe(cmd *cobra.Command, listenAddressOverride string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	listenAddress := cfg.ListenAddress
	if listenAddressOverride != "" {
		listenAddress = listenAddressOverride
	}

	srv := feedhttp.New(eng, listenAddress)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	logger.Info("pkgfeed: serving", logger.Fields{"address": listenAddress, "root": cfg.Root})

	select {
	case <-cmd.Context().Done():
		logger.Info("pkgfeed: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return <-serveErr
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
