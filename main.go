package main

import (
	"context"
	"log"
	"os"
	"time"

	"chatrelay/internal/api"
	"chatrelay/internal/config"
	"chatrelay/internal/metrics"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/redis"
	"chatrelay/internal/relay"
	"chatrelay/internal/storage"
	"chatrelay/internal/store"
	"chatrelay/internal/upstream"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CHATRELAY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("CHATRELAY_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	window := time.Duration(cfg.RateLimit.WindowMS) * time.Millisecond
	var limiter ratelimit.Limiter
	if cfg.Redis.Host != "" {
		rdb, err := redis.NewClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisWindow(rdb, window, cfg.RateLimit.MaxRequests)
	} else {
		fixed := ratelimit.NewFixedWindow(window, cfg.RateLimit.MaxRequests)
		sweepCtx, sweepCancel := context.WithCancel(context.Background())
		defer sweepCancel()
		fixed.StartSweeper(sweepCtx, 0)
		limiter = fixed
	}

	conversationStore := store.New(db)
	upstreamClient := upstream.NewClient(cfg.Upstream)
	m := metrics.New()
	orchestrator := relay.NewOrchestrator(conversationStore, upstreamClient, cfg.Chat.SystemPrompt, cfg.Chat.HistoryLimit, m)
	handlers := api.NewHandler(conversationStore, orchestrator, limiter, cfg, m)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
