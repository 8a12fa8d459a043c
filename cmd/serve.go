package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/logging"
	"github.com/KaramelBytes/parish-explorer/internal/recommend"
	"github.com/KaramelBytes/parish-explorer/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the explorer as an HTTP JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		level := cfg.LogLevel
		if debug {
			level = "debug"
		}
		logger := logging.Init(level)

		// fail fast on a bad dataset; requests reload through the cache
		if _, err := loadTable(cfg, cmd.ErrOrStderr()); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, release, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()

		var rec *recommend.Service
		if rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: serveProvider}); err != nil {
			logger.Warn("serve: recommendations disabled", "error", err)
		} else {
			model := selectModel(cfg, serveModel)
			rec = recommend.NewService(rt, model, recommend.WithMaxTokens(cfg.MaxTokens), recommend.WithTemperature(cfg.Temperature))
			logger.Info("serve: recommendations enabled", "provider", providerName, "model", model)
		}

		srv, err := server.New(server.Config{
			Tables: func(context.Context) (*dataset.Table, error) {
				return loadTable(cfg, nil)
			},
			Store:       store,
			Recommender: rec,
			Logger:      logger,
		})
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("serve: listening", "addr", addr, "data", cfg.DataPath, "sessions", cfg.SessionBackend)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		logger.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config listen_addr)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "recommendation provider: gemini|openrouter|ollama")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "recommendation model (default from config)")
}
