// Package telemetry streams periodic host and storage snapshots to
// authenticated WebSocket clients.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/netx"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/gorilla/websocket"
)

const (
	DefaultInterval = 2 * time.Second

	writeWait    = 10 * time.Second
	maxReadBytes = 512
)

// Resolver authenticates the token presented on the handshake.
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (*models.Identity, error)
}

// SnapshotSource builds the document pushed on each tick.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (models.TelemetrySnapshot, error)
}

// Channel is the http.Handler for the push endpoint. The token is
// resolved before the upgrade; a rejected peer gets a plain HTTP error
// and never a WebSocket.
type Channel struct {
	gate     Resolver
	source   SnapshotSource
	interval time.Duration
	log      logging.Logger
	upgrader websocket.Upgrader
	active   atomic.Int64
	sessions sync.WaitGroup

	// base is cancelled by Shutdown; hijacked connections are not
	// tracked by http.Server.Shutdown.
	base     context.Context
	shutdown context.CancelFunc
}

func NewChannel(gate Resolver, source SnapshotSource, interval time.Duration, log logging.Logger) *Channel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	base, shutdown := context.WithCancel(context.Background())
	return &Channel{
		base:     base,
		shutdown: shutdown,
		gate:     gate,
		source:   source,
		interval: interval,
		log:      log.With("module", "telemetry"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the token travels in the query, not in cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Shutdown ends every streaming session with a going-away close frame
// and waits for the sessions to finish, or for ctx to end. New
// handshakes are still served; stop the listener first.
func (c *Channel) Shutdown(ctx context.Context) error {
	c.shutdown()

	done := make(chan struct{})
	go func() {
		c.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active is the number of sessions currently streaming.
func (c *Channel) Active() int64 { return c.active.Load() }

func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := newSession()

	identity, err := c.gate.Resolve(ctx, r.URL.Query().Get(common.TokenQueryParam))
	if err != nil {
		s.advance(StateClosed)
		c.log.Info(ctx, "telemetry handshake rejected", "session", s.ID, "error", err)
		netx.WriteError(w, r, c.log, err)
		return
	}
	s.Username = identity.Username

	// Counted before the upgrade so the session is tracked while the
	// connection still belongs to the HTTP server.
	c.sessions.Add(1)
	defer c.sessions.Done()

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the peer.
		s.advance(StateClosed)
		c.log.Warn(ctx, "telemetry upgrade failed", "session", s.ID, "error", err)
		return
	}

	s.advance(StateStreaming)
	c.active.Add(1)
	c.log.Info(ctx, "telemetry session started", "session", s.ID, "user", s.Username)

	reason := c.stream(ctx, conn)

	c.active.Add(-1)
	s.advance(StateClosed)
	c.log.Info(ctx, "telemetry session closed", "session", s.ID, "user", s.Username, "reason", reason)
}

// stream pushes snapshots until the peer leaves, a write or snapshot
// fails, or ctx ends. It returns a short description of why it stopped.
func (c *Channel) stream(ctx context.Context, conn *websocket.Conn) string {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()
	defer conn.Close()

	peerGone := make(chan struct{})
	go readLoop(conn, peerGone)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		snap, err := c.source.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return goAway(conn, peerGone)
			}
			c.log.Error(ctx, "telemetry snapshot failed", "error", err)
			closeWith(conn, websocket.CloseInternalServerErr, "")
			return "snapshot failed"
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return "write failed"
		}

		select {
		case <-peerGone:
			return "peer closed"
		case <-ctx.Done():
			return goAway(conn, peerGone)
		case <-ticker.C:
		}
	}
}

func goAway(conn *websocket.Conn, peerGone <-chan struct{}) string {
	select {
	case <-peerGone:
		return "peer closed"
	default:
	}
	closeWith(conn, websocket.CloseGoingAway, "server shutting down")
	return "shutdown"
}

// readLoop discards incoming frames so control frames get processed, and
// closes done once the peer goes away.
func readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxReadBytes)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
