package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-llmlab/internal/api"
	"go-llmlab/internal/archive"
	"go-llmlab/internal/auth"
	"go-llmlab/internal/config"
	"go-llmlab/internal/db"
	"go-llmlab/internal/llm"
	redisdb "go-llmlab/internal/redis"
	"go-llmlab/internal/tokens"
	"go-llmlab/internal/tools"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "Config error: server.jwtSecret is required")
		os.Exit(1)
	}
	if err := db.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}

	scraperOpts := []tools.ParserOption{tools.WithMaxChars(cfg.Scraper.MaxChars)}
	cacheTTL := time.Duration(cfg.Scraper.CacheTTLMinutes) * time.Minute

	var sessions auth.Sessions
	if cfg.Redis.Addr != "" {
		rdb := redisdb.NewClient(cfg)
		defer rdb.Close()
		if err := redisdb.Ping(context.Background(), rdb); err != nil {
			fmt.Fprintf(os.Stderr, "Redis error: %v\n", err)
			os.Exit(1)
		}
		sessions = auth.NewRedisSessions(rdb)
		scraperOpts = append(scraperOpts, tools.WithCache(tools.NewRedisCache(rdb, cacheTTL)))
	} else {
		logrus.Warn("redis.addr not set; sessions and page cache are kept in memory")
		sessions = auth.NewMemorySessions()
		scraperOpts = append(scraperOpts, tools.WithCache(tools.NewLRUCache(cfg.Scraper.CacheSize, cacheTTL)))
	}

	registry, manager, err := llm.BuildBackends(cfg.Backends, llm.DefaultQueueConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backend error: %v\n", err)
		os.Exit(1)
	}
	defer manager.Stop()

	pages := tools.NewWebParserClient(
		time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second,
		cfg.Scraper.UserAgent,
		cfg.Scraper.MaxPageMB,
		scraperOpts...,
	)

	r := api.SetupRouter(cfg, &api.Services{
		Registry:  registry,
		Discovery: llm.DiscoveryFor(cfg.Backends),
		Manager:   manager,
		Pages:     pages,
		Tokens:    tokens.NewInspector(),
		Store:     archive.NewStore(db.DB),
		Sessions:  sessions,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "subpath": cfg.Server.Subpath, "backends": registry.Names()}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Shutdown did not complete cleanly")
	}
	logrus.Info("Server stopped")
}
