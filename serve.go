package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Talha-Khalil/bet-you-can-t/internal/auth"
	"github.com/Talha-Khalil/bet-you-can-t/internal/cache"
	"github.com/Talha-Khalil/bet-you-can-t/internal/handlers"
	"github.com/Talha-Khalil/bet-you-can-t/internal/repository"
	"github.com/Talha-Khalil/bet-you-can-t/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when configured, the Telegram bot",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	var views cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		views = cache.NewRedisCache(rdb)
		logger.Info("✅ Connected to Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("⚠️  REDIS_ADDR not set, view cache disabled")
	}

	sinks := []service.EventSink{cache.NewInvalidator(views, logger)}

	var bot *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("bot initialization error: %w", err)
		}
		logger.Info("✅ Bot authorized", zap.String("username", bot.Self.UserName))
		if cfg.TelegramAnnounceChatID != 0 {
			sinks = append(sinks, handlers.NewAnnouncer(bot, cfg.TelegramAnnounceChatID, logger))
		}
	}

	svc := service.NewService(repository.NewRepository(db), logger, sinks...)
	api := handlers.NewAPI(svc, auth.NewVerifier(cfg.JWTSecret, cfg.CookieName), views, cfg.FeedCacheTTL, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 API listening", zap.String("addr", srv.Addr), zap.Strings("cors", cfg.CORSOrigin))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if bot != nil {
		g.Go(func() error {
			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			u.AllowedUpdates = []string{"message"}

			logger.Info("🚀 Bot is running...")
			handlers.NewBotHandler(bot, svc, logger).Run(gctx, bot.GetUpdatesChan(u))
			bot.StopReceivingUpdates()
			return nil
		})
	}

	return g.Wait()
}
