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

	"github.com/example/learncore/internal/api"
	"github.com/example/learncore/internal/cache"
	"github.com/example/learncore/internal/config"
	"github.com/example/learncore/internal/database"
	"github.com/example/learncore/internal/engine"
	"github.com/example/learncore/internal/graph"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/internal/mastery"
	"github.com/example/learncore/internal/notify"
	"github.com/example/learncore/internal/recommend"
	"github.com/example/learncore/internal/resolver"
	"github.com/example/learncore/internal/scheduler"
	"github.com/example/learncore/internal/srs"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Создаем контекст с отменой
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключаемся к базе данных
	if err := database.Connect(cfg.DBType, cfg.DatabaseURL, cfg.SQLitePath); err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	// Graph store
	client, err := graph.NewClient(graph.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
		Timeout:  cfg.Neo4jTimeout,
		MaxPool:  cfg.Neo4jMaxPool,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to graph store", "error", err)
	}
	defer client.Close(ctx)
	if err := client.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize graph schema", "error", err)
	}
	store := graph.NewStore(client, log)

	masteryCfg := mastery.DefaultConfig()
	masteryCfg.BaseRate = cfg.MasteryBaseRate
	masteryCfg.MinRate = cfg.MasteryMinRate
	masteryCfg.HalfLife = time.Duration(cfg.MasteryHalfLifeDays) * 24 * time.Hour
	masteryCfg.Baseline = cfg.MasteryBaseline
	masteryCfg.PassThreshold = cfg.PassThreshold
	masteryCfg.RetryThreshold = cfg.RetryThreshold
	tracker := mastery.New(masteryCfg)

	srsCfg := srs.DefaultConfig()
	srsCfg.MaxIntervalDays = cfg.MaxIntervalDays
	reviews := srs.New(srsCfg)

	attempts := database.NewAttemptRepository()
	masteries := database.NewMasteryRepository()
	schedules := database.NewScheduleRepository()

	recCfg := recommend.DefaultConfig()
	recCfg.EligibilityThreshold = cfg.EligibilityThreshold
	recCfg.DiversityFraction = cfg.DiversityFraction
	recommender := recommend.New(store, masteries, schedules, tracker, recCfg, log)

	entityResolver := resolver.New(store, resolver.DefaultConfig(), log)

	recCache := cache.New(cfg.RedisAddr, cfg.RecommendCacheTTL, log)
	defer recCache.Close()

	svcCfg := engine.DefaultConfig()
	svcCfg.OpTimeout = cfg.OpTimeout
	svc := engine.New(attempts, masteries, schedules, store,
		tracker, reviews, recommender, entityResolver, recCache, svcCfg, log)

	// Напоминания включаются только при наличии токена
	if cfg.TelegramBotToken != "" {
		notifier, err := notify.NewTelegram(cfg.TelegramBotToken, log)
		if err != nil {
			log.Fatal("failed to create telegram notifier", "error", err)
		}
		digest := scheduler.New(notifier, log)
		digest.Start()
		defer digest.Stop()
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:     api.NewHandler(svc, log),
		Auth:        api.NewAuthMiddleware(cfg.AuthJWTSecret, log),
		RateLimiter: api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Mode:        cfg.Mode,
	})
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info("server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ждем сигнала завершения
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("server stopped")
}
