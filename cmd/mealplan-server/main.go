package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mealplan-engine/internal/api"
	"mealplan-engine/internal/app"
	"mealplan-engine/internal/config"
	"mealplan-engine/internal/logger"
	"mealplan-engine/internal/telegram"

	"go.uber.org/zap"
)

const webhookPath = "/telegram/webhook"

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, closeApp, err := app.Bootstrap(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to bootstrap application", zap.Error(err))
	}
	defer func() {
		if err := closeApp(); err != nil {
			zlog.Warn("failed to close resources", zap.Error(err))
		}
	}()

	var opts []api.Option
	var bot *telegram.Bot
	if cfg.RequireTelegram() == nil {
		bot, err = telegram.NewBot(cfg, application, zlog)
		if err != nil {
			zlog.Fatal("failed to initialize telegram bot", zap.Error(err))
		}
		if cfg.TelegramWebhookURL != "" {
			opts = append(opts, api.WithHandler(webhookPath, bot.Handler()))
		} else {
			go func() {
				if err := bot.Run(ctx); err != nil {
					zlog.Error("telegram polling stopped", zap.Error(err))
				}
			}()
		}
	} else {
		zlog.Info("telegram bot disabled")
	}

	srv := api.NewServer(":"+cfg.Port, application, zlog, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	if bot != nil {
		bot.Wait()
	}
	zlog.Info("server exiting")
}
