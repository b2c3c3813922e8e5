package session

import (
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/chat"
	"github.com/classpoll/pollsession/internal/poll"
	"github.com/classpoll/pollsession/internal/protocol"
	"github.com/classpoll/pollsession/internal/registry"
)

// projection builds the payload one audience is allowed to see.
type projection func(aud poll.Audience) any

func same(v any) projection {
	return func(poll.Audience) any { return v }
}

func pollView(p *poll.Poll) projection {
	return func(aud poll.Audience) any { return p.View(aud) }
}

func (c *client) audience() poll.Audience {
	if c.role == roleTeacher {
		return poll.AudienceTeacher
	}
	return poll.AudienceStudent
}

func (s *Session) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) broadcast(typ protocol.EventType, except string, project projection) {
	s.broadcastAt(s.nextSeq(), typ, except, project)
}

// broadcastAt sends one logical event to every joined connection that is
// still allowed to listen, projected per recipient.
func (s *Session) broadcastAt(seq uint64, typ protocol.EventType, except string, project projection) {
	for id, c := range s.conns {
		if id == except || !s.listening(c) {
			continue
		}
		s.deliver(id, c, protocol.Event{Type: typ, Seq: seq, Data: project(c.audience())})
	}
	if s.sink != nil {
		s.sink.Publish(s.code, protocol.Event{Type: typ, Seq: seq, Data: project(poll.AudienceStudent)})
	}
}

func (s *Session) listening(c *client) bool {
	switch c.role {
	case roleTeacher:
		return true
	case roleStudent:
		return s.reg.IsActive(c.participantID)
	default:
		return false
	}
}

// deliver never blocks. A connection whose outbox is full is dropped, and
// its disconnect is handled later as a separate Detach.
func (s *Session) deliver(connID string, c *client, ev protocol.Event) {
	if c.outbox == nil {
		return
	}
	select {
	case c.outbox <- ev:
	default:
		s.log.Warn("dropping slow connection",
			zap.String("conn", connID),
			zap.String("event", string(ev.Type)),
			zap.Uint64("seq", ev.Seq))
		close(c.outbox)
		c.outbox = nil
		go s.enqueue(Detach{ConnID: connID})
	}
}

func (s *Session) teacherSnapshot() protocol.TeacherSnapshot {
	snap := protocol.TeacherSnapshot{
		PollHistory:  make([]poll.View, 0, len(s.history)),
		Participants: s.reg.List(),
		ChatMessages: s.chatMessages(),
	}
	if s.active != nil {
		v := s.active.View(poll.AudienceTeacher)
		snap.CurrentPoll = &v
	}
	for _, p := range s.history {
		snap.PollHistory = append(snap.PollHistory, p.View(poll.AudienceTeacher))
	}
	return snap
}

func (s *Session) studentSnapshot(p registry.Participant) protocol.StudentSnapshot {
	snap := protocol.StudentSnapshot{
		Participant:  p,
		ChatMessages: s.chatMessages(),
	}
	if s.active != nil {
		v := s.active.View(poll.AudienceStudent)
		snap.CurrentPoll = &v
		snap.HasAnswered = s.active.HasVoted(p.ID)
	}
	return snap
}

func (s *Session) chatMessages() []chat.Message {
	msgs := s.chat.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs
}

func (s *Session) view() View {
	st := Stats{
		Code:               s.code,
		Seq:                s.seq,
		Connections:        len(s.conns),
		Participants:       s.reg.Len(),
		ActiveParticipants: s.reg.ActiveCount(),
		HistoryLength:      len(s.history),
		ChatLength:         s.chat.Len(),
	}
	if s.active != nil {
		st.ActivePollID = s.active.ID
	}
	return View{Stats: st, State: s.teacherSnapshot()}
}
