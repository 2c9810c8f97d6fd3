package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/auth"
	"github.com/Uuq114/JanusRelay/internal/config"
	"github.com/Uuq114/JanusRelay/internal/metrics"
)

// NewRouter registers the relay routes on a fresh gin engine.
func NewRouter(cfg *config.Config, handler *Handler, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger, m))
	r.Use(RecoveryMiddleware(logger))

	r.GET("/", handler.Home)
	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(m.Handler(cfg.MetricsToken)))

	r.POST("/chat", auth.StaticToken(cfg.AccessToken, logger), handler.Chat)

	return r
}

// WithCORS applies the profile's cross-origin policy.
func WithCORS(cfg *config.Config, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{HeaderRequestID},
	})
	return c.Handler(next)
}

// NewHTTPServer wires the router behind CORS. The write timeout leaves room
// for a full upstream call.
func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      WithCORS(cfg, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
