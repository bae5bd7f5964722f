package main

import (
	"context"
	"flag"
	"time"

	"cogstate-service/internal/cache"
	"cogstate-service/internal/config"
	"cogstate-service/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	conf, err := config.Load(*configDir)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	cfg := conf.Config()

	log, err := logging.Init(cfg.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := cache.NewRedisClient(ctx, cache.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		SnapshotTTL: cfg.Redis.SnapshotTTL,
		RecentLimit: cfg.Redis.RecentLimit,
	})
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer redisClient.Close()

	server := NewServer(cfg, redisClient, log)

	// Engine windows apply to sessions started after the change.
	conf.Watch(log, func(next config.Config) {
		server.sessions.SetEngineConfig(next.Engine.Analytics())
	})

	if err := server.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}
