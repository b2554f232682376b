// Package transport wires the collaboration protocol onto the network:
// an Echo HTTP application exposing the websocket upgrade endpoint plus
// small JSON status routes, built the same way the teacher's internal/ws
// and internal/httpapi packages compose Echo and gorilla/websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"collabd/internal/ids"
	"collabd/internal/peer"
	"collabd/internal/room"
)

// Config holds the per-connection resilience knobs exposed as CLI flags:
// the inbound rate limit and the outbound peer queue size.
type Config struct {
	RatePerSecond float64
	Burst         int
	SinkBuffer    int
}

// DefaultConfig returns the limits a Server uses when none are given
// explicitly.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: peer.DefaultRatePerSecond,
		Burst:         peer.DefaultBurst,
		SinkBuffer:    peer.DefaultSinkBuffer,
	}
}

// Server is the Echo application serving the sync endpoint and health/rooms
// status routes.
type Server struct {
	echo     *echo.Echo
	registry *room.Registry
	ids      *ids.Generator
	upgrader websocket.Upgrader
	limits   peer.Limits
}

// New constructs an Echo app bound to registry, assigning each new
// connection an id from idGen and the resilience limits in cfg.
func New(registry *room.Registry, idGen *ids.Generator, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{
		echo:     e,
		registry: registry,
		ids:      idGen,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		limits: peer.Limits{
			RatePerSecond: cfg.RatePerSecond,
			Burst:         cfg.Burst,
			SinkBuffer:    cfg.SinkBuffer,
		},
	}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Request().URL.Path
			if path == "/ws" || path == "/health" {
				slog.Debug("http request", "method", c.Request().Method, "path", path, "status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds())
			} else {
				slog.Info("http request", "method", c.Request().Method, "path", path, "status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds(), "remote", c.RealIP())
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/rooms", s.handleRooms)
	s.echo.GET("/ws", s.handleSync)
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Rooms: s.registry.Len()})
}

type roomsResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, roomsResponse{Count: s.registry.Len()})
}

// handleSync upgrades one "/ws" request to a websocket connection and
// serves it as a peer session attached to the document named by the "doc"
// query parameter, defaulting to "default" the way the reference server's
// hardcoded room name did before this server resolved it per-request.
func (s *Server) handleSync(c echo.Context) error {
	documentName := c.QueryParam("doc")
	if documentName == "" {
		documentName = "default"
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("sync upgrade failed", "remote", c.RealIP(), "err", err)
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	peerID := s.ids.Next()
	slog.Info("peer attached", "document", documentName, "peer", peerID, "remote", c.RealIP())

	sess := peer.NewSession(conn, s.registry, documentName, uint64(peerID), s.limits)
	sess.Serve()

	slog.Info("peer detached", "document", documentName, "peer", peerID)
	return nil
}

// Run starts the Echo server and blocks until ctx is cancelled or the
// server fails to start.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down sync server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("sync server stopped")
		return nil
	}
}
