package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/card"
	"github.com/0xsamyy/callpoll/internal/config"
	"github.com/0xsamyy/callpoll/internal/dashboard"
	"github.com/0xsamyy/callpoll/internal/dedupe"
	"github.com/0xsamyy/callpoll/internal/health"
	"github.com/0xsamyy/callpoll/internal/leaderboard"
	"github.com/0xsamyy/callpoll/internal/logging"
	"github.com/0xsamyy/callpoll/internal/market"
	"github.com/0xsamyy/callpoll/internal/poll"
	"github.com/0xsamyy/callpoll/internal/server"
	"github.com/0xsamyy/callpoll/internal/store"
	"github.com/0xsamyy/callpoll/internal/telegram"
)

func main() {
	cfg := config.MustLoad()

	log, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info(cfg.RedactedSummary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("callpoll stopped", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if e := st.Close(); e != nil {
			log.Warn("store close", zap.Error(e))
		}
	}()

	oracle := market.NewDexScreener(cfg.DexScreenerURL, cfg.QuoteCacheTTL)

	agg := leaderboard.New(st, oracle, leaderboard.Config{
		TopN:        cfg.LeaderboardTopN,
		HitMultiple: cfg.LeaderboardHitMultiple,
		Batch:       cfg.LeaderboardBatch,
	}, log)
	defer agg.Close()

	if cfg.PeakSweepSchedule != "off" {
		sweeper, err := leaderboard.NewSweeper(ctx, agg, cfg.PeakSweepSchedule, log)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	var cards card.Generator
	if cfg.GeminiAPIKey != "" {
		gem, err := card.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel)
		if err != nil {
			return err
		}
		defer func() { _ = gem.Close() }()
		cards = gem
	} else {
		log.Info("GEMINI_API_KEY not set; call cards are sent as text")
	}

	claims, err := openDedupe(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dedupe: %w", err)
	}
	defer func() { _ = claims.Close() }()

	stats := dashboard.NewStats(st)
	hub := dashboard.NewHub(stats, 2*time.Second, log)
	defer hub.Close()

	hlth := health.New(st, cfg.StoreDriver, claims.Backend(), hub)

	var disp *telegram.Dispatcher
	bot, err := tg.New(cfg.TelegramBotToken,
		tg.WithDefaultHandler(func(ctx context.Context, b *tg.Bot, u *models.Update) {
			disp.DefaultHandler(ctx, b, u)
		}),
		tg.WithAllowedUpdates(telegram.AllowedUpdates),
	)
	if err != nil {
		return fmt.Errorf("telegram init: %w", err)
	}

	period, _ := leaderboard.ParsePeriod(cfg.LeaderboardDefaultPeriod)
	eng := poll.New(poll.Deps{
		Store:   st,
		Oracle:  oracle,
		Gateway: telegram.NewGateway(bot),
		Boards:  agg,
		Cards:   cards,
		Health:  hlth,
		Logger:  log,
	}, poll.Config{
		PreferenceScope: poll.PreferenceScope(cfg.PreferenceScope),
		AffiliateCode:   cfg.AffiliateCode,
		DefaultPeriod:   period,
		AdminChatID:     cfg.TelegramAdminChatID,
	})
	eng.OnChange(hub.Notify)
	disp = telegram.NewDispatcher(eng, claims, log)

	deps := server.Deps{
		Dispatcher: disp,
		Health:     hlth,
		Stats:      stats,
		Feed:       http.HandlerFunc(hub.ServeWS),
		Secret:     cfg.TelegramWebhookSecret,
		Logger:     log,
	}
	webhook := cfg.TelegramMode == "webhook"
	if webhook {
		deps.Webhook = telegram.NewWebhook(bot, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret)
	}
	srv := server.New(cfg.HTTPAddr, deps)
	srv.Start()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}()

	if webhook {
		if reg, err := deps.Webhook.Register(ctx); err != nil {
			log.Warn("webhook registration failed; retry via /webhook/register", zap.Error(err))
		} else {
			log.Info("webhook registered", zap.String("url", reg.URL))
		}
		log.Info("started; awaiting webhook updates")
		<-ctx.Done()
		return nil
	}

	if err := telegram.DropWebhook(ctx, bot); err != nil {
		log.Warn("drop webhook", zap.Error(err))
	}
	log.Info("started; long polling for updates")
	bot.Start(ctx)
	return nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite", "postgres":
		return store.OpenGorm(cfg.StoreDriver, cfg.StoreDSN())
	default:
		return store.NewBolt(cfg.StoreDSN())
	}
}

func openDedupe(ctx context.Context, cfg config.Config) (dedupe.Claimer, error) {
	if cfg.RedisURL == "" {
		return dedupe.NewMemory(cfg.DedupeTTL, time.Minute), nil
	}
	return dedupe.NewRedis(ctx, cfg.RedisURL, cfg.DedupeTTL)
}
