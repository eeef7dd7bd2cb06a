package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/cache"
	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/ratings"
	"github.com/rushteam/recserve/server"
	"github.com/rushteam/recserve/service"
	"github.com/rushteam/recserve/store"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (empty = built-in defaults)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// 缓存连接延迟建立：redis 没起来也不阻止服务启动，只是降级
	conns := cache.NewConnManager(func() (core.CacheStore, error) {
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.CacheDB)
	})
	defer conns.Close()

	c := cache.New(conns,
		cache.WithPrefix(cfg.Cache.KeyPrefix),
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithLogger(log),
	)

	ratingsClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.RatingsDB,
	})
	defer ratingsClient.Close()
	source := ratings.NewRedis(ratingsClient, cfg.Redis.RatingsPrefix)

	rules, err := filter.New(cfg.Recommend.Rules)
	if err != nil {
		log.Fatal().Err(err).Msg("compile filter rules")
	}

	svc := service.New(source, c,
		service.WithRules(rules),
		service.WithWorkers(cfg.Recommend.Workers),
		service.WithTopK(cfg.Recommend.TopK),
		service.WithLogger(log),
	)
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(svc, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("recserved listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("recserved stopped")
}
