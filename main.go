package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"reelproxy/api"
	"reelproxy/config"
	"reelproxy/handlers"
	"reelproxy/internal/database"
	"reelproxy/services/maintenance"
	"reelproxy/services/proxy"
	"reelproxy/services/upstream"
	"reelproxy/utils"

	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] configuration error: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}))
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		log.Fatalf("[main] failed to open document store: %v", err)
	}
	defer db.Close()

	documents := database.NewDocumentRepository(db.Connection())
	store := proxy.NewDocumentStore(documents, cfg.CacheTTL())

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.UpstreamAPIVersion)
	if !upstreamClient.HasCredentials() {
		log.Printf("[main] WARNING: UPSTREAM_API_KEY is not set; all requests will fail until configured")
	}

	proxySvc := proxy.NewService(upstreamClient, store)
	proxyHandler := handlers.NewProxyHandler(proxySvc, upstreamClient, db)

	var compaction *maintenance.Service
	if cfg.CompactionEnabled {
		compaction = maintenance.NewService(documents, proxy.CacheCollection, cfg.CacheTTL(), cfg.CompactionInterval)
		compaction.Start(context.Background())
	}

	router := utils.NewRouter()
	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())

	versionHandler := handlers.NewVersionHandler()
	router.HandleFunc("/version", versionHandler.GetVersion).Methods(http.MethodGet)

	limiter := api.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	router.PathPrefix("/").Handler(api.RateLimitHandler(limiter, http.HandlerFunc(proxyHandler.Handle)))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("[main] reelproxy listening on %s (upstream %s)", cfg.ListenAddr, cfg.UpstreamBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[main] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if compaction != nil {
		compaction.Stop(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}
