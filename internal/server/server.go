// Package server is the HTTP surface: the Telegram webhook, webhook
// administration, health and the dashboard API.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/dashboard"
	"github.com/0xsamyy/callpoll/internal/health"
	"github.com/0xsamyy/callpoll/internal/telegram"
)

// SecretHeader carries the webhook secret set at registration.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher handles one decoded update.
type Dispatcher interface {
	Dispatch(ctx context.Context, u *models.Update) error
}

// WebhookAdmin registers and inspects the webhook.
type WebhookAdmin interface {
	Register(ctx context.Context) (telegram.Registration, error)
	Status(ctx context.Context) (*models.WebhookInfo, error)
}

// StatsSource produces dashboard snapshots.
type StatsSource interface {
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
}

// HealthSource produces health reports.
type HealthSource interface {
	Snapshot(ctx context.Context) health.Report
}

// Deps are the handlers' collaborators. Webhook is nil in polling mode and
// Feed may be nil when no dashboard feed runs.
type Deps struct {
	Dispatcher Dispatcher
	Webhook    WebhookAdmin
	Health     HealthSource
	Stats      StatsSource
	Feed       http.Handler
	Secret     string
	Logger     *zap.Logger
}

// Server owns the gin engine and its http.Server.
type Server struct {
	d      Deps
	log    *zap.Logger
	engine *gin.Engine
	srv    *http.Server
}

// New builds the router.
func New(addr string, d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{d: d, log: d.Logger.Named("http"), engine: gin.New()}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", SecretHeader},
		MaxAge:          12 * time.Hour,
	}))

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "bot": "callpoll"})
	})
	s.engine.POST("/telegram", s.handleUpdate)
	s.engine.GET("/webhook/register", s.handleRegister)
	s.engine.GET("/webhook/status", s.handleStatus)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/api/stats", s.handleStats)
	if d.Feed != nil {
		s.engine.GET("/api/stats/ws", gin.WrapH(d.Feed))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) handleUpdate(c *gin.Context) {
	if s.d.Secret != "" {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.d.Secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret token"})
			return
		}
	}
	var u models.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.d.Dispatcher.Dispatch(c.Request.Context(), &u); err != nil {
		s.log.Error("webhook update failed", zap.Int64("update", u.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRegister(c *gin.Context) {
	if s.d.Webhook == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bot runs in polling mode"})
		return
	}
	reg, err := s.d.Webhook.Register(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.d.Webhook == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bot runs in polling mode"})
		return
	}
	info, err := s.d.Webhook.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleHealth(c *gin.Context) {
	rep := s.d.Health.Snapshot(c.Request.Context())
	status := http.StatusOK
	if !rep.OK() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, rep)
}

func (s *Server) handleStats(c *gin.Context) {
	snap, err := s.d.Stats.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}
