// Package session is the single authority for one classroom: it owns the
// active poll slot, poll history, participants and chat, and applies every
// mutation on one goroutine.
//
// Requests, disconnects and timer expiries all arrive as messages on the
// same inbox, so there is exactly one writer and no per-field locking.
package session

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/chat"
	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/poll"
	"github.com/classpoll/pollsession/internal/protocol"
	"github.com/classpoll/pollsession/internal/registry"
)

// Sink receives every broadcast event in its student projection. Publish
// must not block.
type Sink interface {
	Publish(code string, ev protocol.Event)
}

type Config struct {
	Code            string
	InboxSize       int
	Limits          poll.Limits
	MaxNameRunes    int
	MaxMessageRunes int
}

func DefaultConfig(code string) Config {
	return Config{
		Code:            code,
		InboxSize:       64,
		Limits:          poll.DefaultLimits(),
		MaxNameRunes:    40,
		MaxMessageRunes: 500,
	}
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = l } }

func WithSink(sink Sink) Option { return func(s *Session) { s.sink = sink } }

type role int

const (
	roleNone role = iota
	roleTeacher
	roleStudent
)

type client struct {
	role          role
	participantID string
	outbox        chan protocol.Event // nil once dropped
}

type Session struct {
	code   string
	inbox  chan Msg
	clock  clockwork.Clock
	log    *zap.Logger
	sink   Sink
	limits poll.Limits

	seq     uint64
	active  *poll.Poll
	history []*poll.Poll // most recent first
	reg     *registry.Registry
	chat    *chat.Log
	conns   map[string]*client
	timers  map[string]clockwork.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, cfg Config, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}

	s := &Session{
		code:   cfg.Code,
		inbox:  make(chan Msg, cfg.InboxSize),
		clock:  clockwork.NewRealClock(),
		log:    zap.NewNop(),
		limits: cfg.Limits,
		reg:    registry.New(cfg.MaxNameRunes),
		chat:   chat.NewLog(cfg.MaxMessageRunes),
		conns:  make(map[string]*client),
		timers: make(map[string]clockwork.Timer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session", s.code))

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Attach:
				msg.Reply <- s.attach(msg.ConnID, msg.Outbox)

			case Detach:
				s.detach(msg.ConnID)

			case FromClient:
				v, err := s.handle(msg.ConnID, msg.Req)
				if err != nil {
					s.log.Debug("request rejected",
						zap.String("conn", msg.ConnID),
						zap.String("request", string(msg.Req.Type())),
						zap.Error(err))
				}
				msg.Reply <- Result{Value: v, Err: err}

			case Expire:
				s.expire(msg.PollID)

			case GetState:
				msg.Reply <- s.view()
			}
		}
	}
}

func (s *Session) shutdown() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, c := range s.conns {
		if c.outbox != nil {
			close(c.outbox)
		}
		delete(s.conns, id)
	}
	s.cancel()
	s.log.Info("session stopped", zap.Uint64("seq", s.seq))
}

func (s *Session) Code() string { return s.code }

// Inbox exposes the loop's inbox for transports and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Done() <-chan struct{} { return s.done }

// Shutdown stops the loop and closes every attached outbox.
func (s *Session) Shutdown() {
	s.cancel()
	<-s.done
}

// enqueue delivers m unless the session has stopped.
func (s *Session) enqueue(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return errs.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, s *Session, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, errs.ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Attach registers outbox for connID. The session closes outbox when the
// connection is dropped or the session stops.
func (s *Session) Attach(ctx context.Context, connID string, outbox chan protocol.Event) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, Attach{ConnID: connID, Outbox: outbox, Reply: reply}); err != nil {
		return err
	}
	err, werr := await(ctx, s, reply)
	if werr != nil {
		return werr
	}
	return err
}

func (s *Session) Detach(connID string) {
	s.enqueue(Detach{ConnID: connID})
}

// Do runs one client request through the loop and returns its result.
func (s *Session) Do(ctx context.Context, connID string, req protocol.Request) (any, error) {
	reply := make(chan Result, 1)
	if err := s.send(ctx, FromClient{ConnID: connID, Req: req, Reply: reply}); err != nil {
		return nil, err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return nil, err
	}
	return res.Value, res.Err
}

func (s *Session) JoinAsTeacher(ctx context.Context, connID string) (protocol.TeacherSnapshot, error) {
	v, err := s.Do(ctx, connID, protocol.JoinTeacher{})
	if err != nil {
		return protocol.TeacherSnapshot{}, err
	}
	return v.(protocol.TeacherSnapshot), nil
}

func (s *Session) JoinAsStudent(ctx context.Context, connID, name string) (protocol.StudentSnapshot, error) {
	v, err := s.Do(ctx, connID, protocol.JoinStudent{Name: name})
	if err != nil {
		return protocol.StudentSnapshot{}, err
	}
	return v.(protocol.StudentSnapshot), nil
}

func (s *Session) CreatePoll(ctx context.Context, connID string, d poll.Draft) (poll.View, error) {
	v, err := s.Do(ctx, connID, protocol.CreatePoll{Draft: d})
	if err != nil {
		return poll.View{}, err
	}
	return v.(poll.View), nil
}

func (s *Session) SubmitAnswer(ctx context.Context, connID string, optionIndex int) (poll.View, error) {
	v, err := s.Do(ctx, connID, protocol.SubmitAnswer{OptionIndex: optionIndex})
	if err != nil {
		return poll.View{}, err
	}
	return v.(poll.View), nil
}

func (s *Session) SendMessage(ctx context.Context, connID, text string) (chat.Message, error) {
	v, err := s.Do(ctx, connID, protocol.SendMessage{Text: text})
	if err != nil {
		return chat.Message{}, err
	}
	return v.(chat.Message), nil
}

func (s *Session) Kick(ctx context.Context, connID, participantID string) (registry.Participant, error) {
	v, err := s.Do(ctx, connID, protocol.KickStudent{ParticipantID: participantID})
	if err != nil {
		return registry.Participant{}, err
	}
	return v.(registry.Participant), nil
}

// State returns a consistent copy of the whole session.
func (s *Session) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, s, reply)
}
