package main

import (
	"context"
	"log"

	"chatcore/config"
	"chatcore/internal/app"
	"chatcore/internal/redis"
	"chatcore/internal/repository"
	"chatcore/pkg/database"
	"chatcore/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	var rdb *goredis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := redis.Ping(context.Background(), rdb); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	a := app.New(cfg, db, rdb, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.RunBackground(ctx)

	if err := a.Server.Start(); err != nil {
		l.Errorf("server stopped with error: %s", err)
	}
}
