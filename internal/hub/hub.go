// Package hub maps session codes to running sessions. Like a session, the
// hub is an actor: its map is only touched by its own loop.
package hub

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/session"
)

// Factory builds the session for code. The session must stop when ctx does.
type Factory func(ctx context.Context, code string) *session.Session

type HubMsg interface{ isHubMsg() }

type EnsureSession struct {
	Code  string
	Reply chan *session.Session
}

type GetSession struct {
	Code  string
	Reply chan *session.Session // nil when unknown
}

// RemoveSession stops and forgets Code. When Session is set, the entry is
// only removed if it still points at that session.
type RemoveSession struct {
	Code    string
	Session *session.Session
}

type ShutdownHub struct{}

func (EnsureSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	factory  Factory
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHub starts the hub loop. Sessions it creates live under parent.
func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		factory:  factory,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := h.sessions[msg.Code]; s != nil {
					msg.Reply <- s
					break
				}
				s := h.factory(h.ctx, msg.Code)
				h.sessions[msg.Code] = s
				go h.watch(msg.Code, s)
				h.log.Info("session started", zap.String("session", msg.Code))
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // may be nil

			case RemoveSession:
				if s := h.sessions[msg.Code]; s != nil && (msg.Session == nil || msg.Session == s) {
					delete(h.sessions, msg.Code)
					s.Shutdown()
					h.log.Info("session removed", zap.String("session", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

// watch forgets s once it stops, so a session shut down outside the hub
// is not handed out again.
func (h *Hub) watch(code string, s *session.Session) {
	select {
	case <-s.Done():
	case <-h.done:
		return
	}
	select {
	case h.inbox <- RemoveSession{Code: code, Session: s}:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	for code, s := range h.sessions {
		s.Shutdown()
		delete(h.sessions, code)
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return errs.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) await(ctx context.Context, reply chan *session.Session) (*session.Session, error) {
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return nil, errs.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ensure returns the session for code, starting it if needed.
func (h *Hub) Ensure(ctx context.Context, code string) (*session.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.Validation("session code is empty")
	}
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, EnsureSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return h.await(ctx, reply)
}

// Get returns the running session for code, or an ErrNotFound error.
func (h *Hub) Get(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, GetSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	s, err := h.await(ctx, reply)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errs.NotFound("session %q", code)
	}
	return s, nil
}

// Remove stops and forgets the session for code. Unknown codes are ignored.
func (h *Hub) Remove(ctx context.Context, code string) error {
	return h.send(ctx, RemoveSession{Code: code})
}

// Shutdown stops every session and then the hub itself.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}
