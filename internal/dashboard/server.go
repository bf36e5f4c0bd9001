// Package dashboard exposes a small Gin-powered JSON API for inspecting the
// live market state, feed health and recent logs of a running instance.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"driftflow/config"
	"driftflow/internal/store"
	"driftflow/internal/transport"
	"driftflow/logger"
	"driftflow/models"
)

// FeedStatus is the connection health surface rendered by the status
// endpoint. Satisfied by *transport.Transport.
type FeedStatus interface {
	State() transport.State
	Attempts() int
	IsActive() bool
}

// Server hosts the monitoring API for DriftFlow.
type Server struct {
	cfg        config.DashboardConfig
	log        *logger.Log
	store      *store.Store
	feed       FeedStatus
	logStore   *logStore
	httpServer *http.Server
	started    time.Time
}

// NewServer constructs a dashboard server when the dashboard feature is enabled.
// When the dashboard is disabled the returned server will be nil.
func NewServer(cfg config.DashboardConfig, log *logger.Log, st *store.Store, feed FeedStatus) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	logStore := newLogStore(200)
	log.AddHook(logStore)

	return &Server{
		cfg:      cfg,
		log:      log,
		store:    st,
		feed:     feed,
		logStore: logStore,
		started:  time.Now(),
	}
}

// Run starts the dashboard HTTP server and blocks until the provided context is
// cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	defer s.logStore.close()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"feed_state":         s.feed.State().String(),
			"feed_active":        s.feed.IsActive(),
			"reconnect_attempts": s.feed.Attempts(),
			"reconnects_total":   logger.Reconnects(),
			"uptime_seconds":     int64(time.Since(s.started).Seconds()),
			"counters":           logger.Counters(),
		})
	})

	router.GET("/api/markets", func(c *gin.Context) {
		records := s.store.Snapshot()
		payload := make([]gin.H, 0, len(records))
		for _, rec := range records {
			payload = append(payload, gin.H{
				"id":          rec.ID,
				"last_update": rec.LastUpdate.Format(time.RFC3339Nano),
			})
		}
		c.JSON(http.StatusOK, gin.H{"records": payload})
	})

	router.GET("/api/orderbook/:channel", func(c *gin.Context) {
		book, ok := s.store.OrderBook(c.Param("channel"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no orderbook for channel"})
			return
		}
		c.JSON(http.StatusOK, book)
	})

	router.GET("/api/trades/:channel", func(c *gin.Context) {
		trades, ok := s.store.Trades(c.Param("channel"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no trades for channel"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": models.ValidTrades(trades, len(trades))})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		logsSnapshot := s.logStore.snapshot()
		payload := make([]gin.H, 0, len(logsSnapshot))
		for _, l := range logsSnapshot {
			payload = append(payload, gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level,
				"component": l.Component,
				"message":   l.Message,
				"fields":    l.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload})
	})

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8090"
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			return net.JoinHostPort("0.0.0.0", port)
		}
	}

	return addr
}
