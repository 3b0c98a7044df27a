package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leasebot/internal/channel"
	"leasebot/internal/metrics"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant (WhatsApp webhook + enabled channels)",
		Long:  "Starts the message pipeline, the WhatsApp webhook server, and any other enabled channels. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg := loadConfig()
	logger.Info("starting", "version", version, "config", cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.store.Close()

	if cfg.Metrics.Enabled {
		metrics.ObserveEvents(p.events)
	}

	go p.loop.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, "ok")
	})
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Collector.Handler())
	}

	var whatsappCh *channel.WhatsApp
	if cfg.Channels.WhatsApp.Enabled {
		whatsappCh = channel.NewWhatsApp(channel.WhatsAppChannelConfig{
			Config: cfg.Channels.WhatsApp,
			Logger: logger,
		})
		if err := whatsappCh.Start(ctx, p.bus); err != nil {
			return fmt.Errorf("whatsapp channel: %w", err)
		}
		mux.Handle("/webhook/", whatsappCh.Handler())
		logger.Info("whatsapp channel enabled")
	} else {
		logger.Info("whatsapp channel disabled")
	}

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramChannelConfig{
			Token:  cfg.Channels.Telegram.Token,
			Logger: logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, p.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	server := &http.Server{
		Addr:              cfg.General.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.General.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Shutdown(shutdownCtx)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if whatsappCh != nil {
			whatsappCh.Stop()
		}
		p.bus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive terminal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			go p.loop.Run(ctx)

			cliCh := channel.NewCLI(channel.CLIChannelConfig{Logger: logger})
			return cliCh.Start(ctx, p.bus)
		},
	}
}
