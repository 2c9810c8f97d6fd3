package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/balancer"
	"github.com/Uuq114/JanusRelay/internal/config"
	"github.com/Uuq114/JanusRelay/internal/logger"
	"github.com/Uuq114/JanusRelay/internal/metrics"
	"github.com/Uuq114/JanusRelay/internal/proxy"
	"github.com/Uuq114/JanusRelay/internal/server"
	"github.com/Uuq114/JanusRelay/internal/spend"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Profile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if cfg.Profile == config.ProfileProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	b, err := balancer.New(cfg.Strategy)
	if err != nil {
		zapLogger.Fatal("Failed to create balancer", zap.Error(err))
	}
	for i := range cfg.Upstreams {
		upstream := &cfg.Upstreams[i]
		b.AddUpstream(upstream)
		zapLogger.Info("registered upstream",
			zap.String("name", upstream.Name),
			zap.String("url", upstream.BaseURL),
			zap.Bool("api_key_present", upstream.HasKey()),
		)
	}

	// 创建代理
	p := proxy.NewProxy(b, cfg.RequestTimeout, spend.NewRecorder(m, zapLogger), m, zapLogger)

	handler := server.NewHandler(p, zapLogger)
	router := server.NewRouter(cfg, handler, m, zapLogger)
	srv := server.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zapLogger.Info("starting Janus relay",
			zap.String("address", srv.Addr),
			zap.String("profile", string(cfg.Profile)),
			zap.String("allowed_origin", cfg.AllowedOrigin),
			zap.String("strategy", cfg.Strategy),
			zap.Duration("request_timeout", cfg.RequestTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
