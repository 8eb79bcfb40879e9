// internal/status/server.go
package status

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/session"
	"github.com/lasersell/lasersell/internal/storage"
)

const defaultListLimit = 50

// SessionSource exposes the position snapshots held by the session store.
type SessionSource interface {
	Snapshots() map[solana.PublicKey]session.PositionSnapshot
}

// EngineState is the read-only view of the engine served by /api/status.
type EngineState interface {
	Paused() bool
	// InFlight returns position ids in ascending order.
	InFlight() []uint64
	SellConfig() config.SellConfig
	StrategyConfig() config.StrategyConfig
}

var _ SessionSource = (*session.Store)(nil)

// Options wires the server. Journal and Metrics are optional.
type Options struct {
	Sessions SessionSource
	Engine   EngineState
	Journal  storage.Journal
	Metrics  http.Handler
	Commands chan<- events.Command
	Logger   *zap.Logger
}

// Server is the local HTTP status endpoint.
type Server struct {
	cfg    config.StatusConfig
	opts   Options
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg config.StatusConfig, opts Options) (*Server, error) {
	if opts.Sessions == nil || opts.Engine == nil {
		return nil, errors.New("status server requires sessions and engine")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultStatusAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if !config.IsLoopbackAddr(cfg.Addr) && cfg.Token == "" {
		return nil, fmt.Errorf("status server on %s needs a token", cfg.Addr)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		opts:   opts,
		router: gin.New(),
		logger: opts.Logger.Named("status"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	api := s.router.Group("/api")
	if s.cfg.Token != "" {
		api.Use(s.requireToken())
	}
	api.GET("/status", s.handleStatus)
	api.GET("/sessions", s.handleSessions)
	api.POST("/sessions/:mint/sell", s.handleManualSell)
	api.POST("/pause", s.handlePause)
	api.GET("/sells", s.handleSells)
	api.GET("/errors", s.handleErrors)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.cfg.Addr }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("🌐 Status server listening", zap.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type statusResponse struct {
	Paused   bool                  `json:"paused"`
	InFlight []uint64              `json:"in_flight"`
	Strategy config.StrategyConfig `json:"strategy"`
	Sell     config.SellConfig     `json:"sell"`
}

func (s *Server) handleStatus(c *gin.Context) {
	inflight := s.opts.Engine.InFlight()
	c.JSON(http.StatusOK, statusResponse{
		Paused:   s.opts.Engine.Paused(),
		InFlight: inflight,
		Strategy: s.opts.Engine.StrategyConfig(),
		Sell:     s.opts.Engine.SellConfig(),
	})
}

type sessionView struct {
	Mint         string `json:"mint"`
	PositionID   uint64 `json:"position_id"`
	Tokens       uint64 `json:"tokens"`
	TokenProgram string `json:"token_program,omitempty"`
	MarketType   string `json:"market_type,omitempty"`
}

func (s *Server) handleSessions(c *gin.Context) {
	snaps := s.opts.Sessions.Snapshots()
	out := make([]sessionView, 0, len(snaps))
	for mint, snap := range snaps {
		v := sessionView{
			Mint:         mint.String(),
			PositionID:   snap.PositionID,
			Tokens:       snap.Tokens,
			TokenProgram: snap.TokenProgram,
		}
		if snap.MarketContext != nil {
			v.MarketType = snap.MarketContext.Type.String()
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleManualSell(c *gin.Context) {
	mint, err := solana.PublicKeyFromBase58(c.Param("mint"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mint"})
		return
	}
	if !s.enqueue(events.RequestExitSignal{Mint: mint}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"mint": mint.String()})
}

func (s *Server) handlePause(c *gin.Context) {
	if !s.enqueue(events.TogglePauseNewSessions{}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "toggled"})
}

func (s *Server) handleSells(c *gin.Context) {
	if s.opts.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	sells, err := s.opts.Journal.ListSells(c.Request.Context(), listLimit(c))
	if err != nil {
		s.logger.Warn("list_sells_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sells)
}

func (s *Server) handleErrors(c *gin.Context) {
	if s.opts.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	errs, err := s.opts.Journal.ListErrors(c.Request.Context(), listLimit(c))
	if err != nil {
		s.logger.Warn("list_errors_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, errs)
}

func (s *Server) enqueue(cmd events.Command) bool {
	if s.opts.Commands == nil {
		return false
	}
	select {
	case s.opts.Commands <- cmd:
		return true
	default:
		return false
	}
}

// requireToken checks "Authorization: Bearer <token>".
func (s *Server) requireToken() gin.HandlerFunc {
	want := []byte(s.cfg.Token)
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			s.logger.Warn("Rejected unauthenticated status request",
				zap.String("event", "status_unauthorized"),
				zap.String("path", c.Request.URL.Path),
				zap.String("remote", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func listLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}
