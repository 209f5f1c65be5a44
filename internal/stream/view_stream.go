// Package stream pushes dashboard snapshots to browsers over WebSocket.
package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mohi-m/postgres-cluster-monitor/internal/converter"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/middleware"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Source provides snapshots and change signals.
type Source interface {
	Summary() model.ViewSummary
	Presets() []int
	Subscribe() (<-chan struct{}, func())
}

// ViewStreamer serves GET /v1/view/stream. Each client receives the current
// view on connect and again after every state change. Records are never
// pushed; clients read them from /v1/dataset.
type ViewStreamer struct {
	source     Source
	viewToHTTP *converter.ViewToHTTP
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewViewStreamer creates a streamer accepting connections from allowedOrigins.
func NewViewStreamer(
	source Source,
	viewToHTTP *converter.ViewToHTTP,
	allowedOrigins []string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ViewStreamer {
	return &ViewStreamer{
		source:     source,
		viewToHTTP: viewToHTTP,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		metrics: m,
		logger:  logger,
	}
}

// originChecker applies the same origin policy as the REST API's CORS
// middleware. Requests without an Origin header are not cross-site.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	policy := middleware.NewOriginPolicy(allowedOrigins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || policy.Allows(origin)
	}
}

// ServeHTTP upgrades the connection and streams views until the client goes away.
func (s *ViewStreamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.StreamClientConnected()
	defer s.metrics.StreamClientDisconnected()

	changes, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	s.logger.Info("View stream client connected", zap.String("remote_addr", r.RemoteAddr))

	closed := make(chan struct{})
	go s.readLoop(conn, closed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	if err := s.writeView(conn); err != nil {
		s.logger.Debug("View stream write failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-closed:
			s.logger.Info("View stream client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-changes:
			if err := s.writeView(conn); err != nil {
				s.logger.Debug("View stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed, and
// closes closed when the connection ends.
func (s *ViewStreamer) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *ViewStreamer) writeView(conn *websocket.Conn) error {
	resp := s.viewToHTTP.ToViewResponse(s.source.Summary(), s.source.Presets())
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(resp)
}
