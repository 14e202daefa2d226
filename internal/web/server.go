// Package web serves the optional local status API: the latest position as
// JSON, runtime counters, and a websocket that streams the position.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	slogecho "github.com/samber/slog-echo"

	"github.com/relabs-tech/nmea_injector/internal/gps"
)

const (
	DefaultPushInterval = time.Second

	shutdownTimeout = 5 * time.Second
	writeWait       = 2 * time.Second
)

// PositionSource is the read side of the position state.
type PositionSource interface {
	Snapshot() (snap gps.Snapshot, ok bool)
	Ready() (position, heading bool)
}

// StatusFunc returns the body of GET /api/status.
type StatusFunc func() any

type Config struct {
	Addr string
	// PushInterval is how often /ws clients get the snapshot.
	PushInterval time.Duration
}

type Server struct {
	addr         string
	source       PositionSource
	status       StatusFunc
	pushInterval time.Duration
	logger       *slog.Logger

	e *echo.Echo

	quit     chan struct{}
	quitOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local tool, any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type errorResponse struct {
	Error string `json:"error"`
}

// Readiness reports which halves of the state have been seen.
type Readiness struct {
	Position bool `json:"position"`
	Heading  bool `json:"heading"`
}

func ReadinessOf(source PositionSource) Readiness {
	pos, hdg := source.Ready()
	return Readiness{Position: pos, Heading: hdg}
}

// New builds the router. status may be nil.
func New(cfg Config, source PositionSource, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}
	s := &Server{
		addr:         cfg.Addr,
		source:       source,
		status:       status,
		pushInterval: cfg.PushInterval,
		logger:       logger.With("component", "web"),
		quit:         make(chan struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)
	e.Logger.SetLevel(log.OFF)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error("recovered from panic", "err", err, "stack", string(stack))
			return err
		},
	}))
	e.Use(slogecho.NewWithConfig(s.logger, slogecho.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))

	api := e.Group("/api")
	api.GET("/position", s.handlePosition)
	api.GET("/status", s.handleStatus)
	e.GET("/ws", s.handleWS)

	s.e = e
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is cancelled, then closes open websockets and shuts
// the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(s.addr) }()
	s.logger.Info("status server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	s.quitOnce.Do(func() { close(s.quit) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown", "err", err)
	}
	return nil
}

func (s *Server) handlePosition(c echo.Context) error {
	snap, ok := s.source.Snapshot()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no data yet"})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.status != nil {
		return c.JSON(http.StatusOK, s.status())
	}
	return c.JSON(http.StatusOK, map[string]any{"ready": ReadinessOf(s.source)})
}

func (s *Server) handleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "err", err)
		return nil
	}
	defer conn.Close()

	// The reader only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read", "err", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	if err := s.push(conn); err != nil {
		return nil
	}
	for {
		select {
		case <-closed:
			return nil
		case <-s.quit:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return nil
		case <-ticker.C:
			if err := s.push(conn); err != nil {
				s.logger.Debug("websocket write", "err", err)
				return nil
			}
		}
	}
}

// push writes the snapshot if the state is ready; otherwise nothing.
func (s *Server) push(conn *websocket.Conn) error {
	snap, ok := s.source.Snapshot()
	if !ok {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
