// Package ws adapts websocket connections to sessions. Each connection gets
// an outbox attached to its session, a writer draining that outbox, and a
// reader turning frames into requests.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/hub"
	"github.com/classpoll/pollsession/internal/protocol"
	"github.com/classpoll/pollsession/internal/session"
)

type Options struct {
	DefaultSession string
	OriginPatterns []string
	OutboxSize     int
	ReadLimit      int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 8192
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	return o
}

var (
	errOutboxClosed = errors.New("outbox closed")
	errPeerClosed   = errors.New("peer closed")
)

func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("session")
		if code == "" {
			code = opts.DefaultSession
		}

		s, err := h.Get(r.Context(), code)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		conn.SetReadLimit(opts.ReadLimit)

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			sess: s,
			out:  make(chan protocol.Event, opts.OutboxSize),
			opts: opts,
			log:  log.With(zap.String("session", code)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	sess *session.Session
	out  chan protocol.Event
	opts Options
	log  *zap.Logger
}

func (c *client) serve(ctx context.Context) {
	if err := c.sess.Attach(ctx, c.id, c.out); err != nil {
		c.log.Warn("attach failed", zap.String("conn", c.id), zap.Error(err))
		_ = c.conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	c.log.Debug("connection attached", zap.String("conn", c.id))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writeLoop(gctx) })
	g.Go(func() error { return c.readLoop(gctx) })
	err := g.Wait()

	c.sess.Detach(c.id)

	switch {
	case errors.Is(err, errOutboxClosed):
		_ = c.conn.Close(websocket.StatusGoingAway, "connection dropped")
	default:
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}
	c.log.Debug("connection closed", zap.String("conn", c.id), zap.Error(err))
}

func (c *client) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-c.out:
			if !ok {
				return errOutboxClosed
			}
			if err := c.write(ctx, ev); err != nil {
				return err
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *client) write(ctx context.Context, ev protocol.Event) error {
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, ev)
}

func (c *client) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return errPeerClosed
			}
			return err
		}

		req, typ, err := protocol.Decode(data)
		if err != nil {
			if werr := c.write(ctx, protocol.ErrorEvent(typ, err)); werr != nil {
				return werr
			}
			continue
		}

		if _, err := c.sess.Do(ctx, c.id, req); err != nil {
			if errors.Is(err, errs.ErrClosed) {
				return err
			}
			if werr := c.write(ctx, protocol.ErrorEvent(req.Type(), err)); werr != nil {
				return werr
			}
		}
	}
}
