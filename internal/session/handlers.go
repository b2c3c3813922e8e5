package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/chat"
	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/poll"
	"github.com/classpoll/pollsession/internal/protocol"
	"github.com/classpoll/pollsession/internal/registry"
)

const teacherName = "Teacher"

// Every handler below either fully applies or returns an error before
// touching session state.

func (s *Session) attach(connID string, outbox chan protocol.Event) error {
	if connID == "" || outbox == nil {
		return errs.Validation("connection id and outbox are required")
	}
	if _, ok := s.conns[connID]; ok {
		return errs.State("connection %s already attached", connID)
	}
	s.conns[connID] = &client{outbox: outbox}
	return nil
}

func (s *Session) detach(connID string) {
	c, ok := s.conns[connID]
	if !ok {
		return
	}
	delete(s.conns, connID)
	if c.outbox != nil {
		close(c.outbox)
	}

	if c.role != roleStudent {
		return
	}
	p, changed := s.reg.Deactivate(c.participantID)
	if !changed {
		return
	}
	s.log.Info("participant disconnected", zap.String("participant", p.ID), zap.String("name", p.Name))
	s.broadcast(protocol.EvtParticipantUpdated, "", same(p))
}

func (s *Session) handle(connID string, req protocol.Request) (any, error) {
	c, ok := s.conns[connID]
	if !ok || c.outbox == nil {
		return nil, errs.Authorization("connection %s is not attached", connID)
	}

	switch r := req.(type) {
	case protocol.JoinTeacher:
		return s.joinTeacher(connID, c)
	case protocol.JoinStudent:
		return s.joinStudent(connID, c, r.Name)
	case protocol.CreatePoll:
		if err := s.requireTeacher(c); err != nil {
			return nil, err
		}
		return s.createPoll(r.Draft)
	case protocol.SubmitAnswer:
		if err := s.requireActiveStudent(c); err != nil {
			return nil, err
		}
		return s.submitAnswer(connID, c.participantID, r.OptionIndex)
	case protocol.SendMessage:
		return s.sendMessage(c, r.Text)
	case protocol.KickStudent:
		if err := s.requireTeacher(c); err != nil {
			return nil, err
		}
		return s.kick(r.ParticipantID)
	default:
		return nil, errs.Validation("unsupported request %T", req)
	}
}

func (s *Session) requireTeacher(c *client) error {
	if c.role != roleTeacher {
		return errs.Authorization("teacher only")
	}
	return nil
}

func (s *Session) requireActiveStudent(c *client) error {
	if c.role != roleStudent {
		return errs.Authorization("student only")
	}
	if !s.reg.IsActive(c.participantID) {
		return errs.Authorization("participant %s is not active", c.participantID)
	}
	return nil
}

func (s *Session) joinTeacher(connID string, c *client) (protocol.TeacherSnapshot, error) {
	if c.role == roleStudent {
		if !s.reg.IsActive(c.participantID) {
			return protocol.TeacherSnapshot{}, errs.Authorization("participant %s is not active", c.participantID)
		}
		return protocol.TeacherSnapshot{}, errs.State("connection already joined as a student")
	}
	c.role = roleTeacher

	snap := s.teacherSnapshot()
	s.deliver(connID, c, protocol.Event{Type: protocol.EvtTeacherJoined, Seq: s.nextSeq(), Data: snap})
	s.log.Info("teacher joined", zap.String("conn", connID))
	return snap, nil
}

func (s *Session) joinStudent(connID string, c *client, name string) (protocol.StudentSnapshot, error) {
	switch {
	case c.role == roleTeacher:
		return protocol.StudentSnapshot{}, errs.State("connection already joined as the teacher")
	case c.role == roleStudent && s.reg.IsActive(c.participantID):
		return protocol.StudentSnapshot{}, errs.State("already joined")
	}

	p, err := s.reg.Add(name, s.clock.Now())
	if err != nil {
		return protocol.StudentSnapshot{}, err
	}
	c.role = roleStudent
	c.participantID = p.ID

	snap := s.studentSnapshot(p)
	s.deliver(connID, c, protocol.Event{Type: protocol.EvtStudentJoined, Seq: s.nextSeq(), Data: snap})
	s.broadcast(protocol.EvtParticipantJoined, connID, same(p))

	s.log.Info("student joined", zap.String("participant", p.ID), zap.String("name", p.Name))
	return snap, nil
}

func (s *Session) createPoll(d poll.Draft) (poll.View, error) {
	if s.active != nil {
		return poll.View{}, errs.State("poll %s is still active", s.active.ID)
	}
	p, err := poll.New(uuid.NewString(), d, s.clock.Now(), s.limits)
	if err != nil {
		return poll.View{}, err
	}

	s.active = p
	s.armExpiry(p)
	s.broadcast(protocol.EvtPollCreated, "", pollView(p))

	s.log.Info("poll created",
		zap.String("poll", p.ID),
		zap.Int("options", len(p.Options)),
		zap.Int("timer_sec", p.TimerSeconds))
	return p.View(poll.AudienceTeacher), nil
}

func (s *Session) submitAnswer(connID, participantID string, optionIndex int) (poll.View, error) {
	if s.active == nil {
		return poll.View{}, errs.State("no active poll")
	}
	p := s.active
	if err := p.Submit(participantID, optionIndex); err != nil {
		return poll.View{}, err
	}

	s.broadcast(protocol.EvtPollUpdated, "", pollView(p))

	view := p.View(poll.AudienceStudent)
	if c, ok := s.conns[connID]; ok {
		s.deliver(connID, c, protocol.Event{
			Type: protocol.EvtAnswerSubmitted,
			Seq:  s.nextSeq(),
			Data: protocol.AnswerReceipt{CurrentPoll: view, OptionIndex: optionIndex},
		})
	}
	return view, nil
}

func (s *Session) sendMessage(c *client, text string) (chat.Message, error) {
	var senderID, senderName string
	switch c.role {
	case roleTeacher:
		senderID, senderName = "teacher", teacherName
	case roleStudent:
		p, ok := s.reg.Get(c.participantID)
		if !ok || !p.IsActive {
			return chat.Message{}, errs.Authorization("participant %s is not active", c.participantID)
		}
		senderID, senderName = p.ID, p.Name
	default:
		return chat.Message{}, errs.Authorization("join before sending messages")
	}

	seq := s.seq + 1
	msg, err := s.chat.Append(senderID, senderName, text, seq, s.clock.Now())
	if err != nil {
		return chat.Message{}, err
	}
	s.seq = seq
	s.broadcastAt(seq, protocol.EvtNewMessage, "", same(msg))
	return msg, nil
}

func (s *Session) kick(participantID string) (registry.Participant, error) {
	p, err := s.reg.Kick(participantID)
	if err != nil {
		return registry.Participant{}, err
	}

	s.broadcast(protocol.EvtParticipantUpdated, "", same(p))
	for id, c := range s.conns {
		if c.role == roleStudent && c.participantID == participantID {
			s.deliver(id, c, protocol.Event{Type: protocol.EvtKickedOut, Seq: s.nextSeq()})
		}
	}

	s.log.Info("participant kicked", zap.String("participant", p.ID), zap.String("name", p.Name))
	return p, nil
}

// expire closes pollID if it is still the active poll. Stale or repeated
// expiries are no-ops.
func (s *Session) expire(pollID string) {
	delete(s.timers, pollID)

	p := s.active
	if p == nil || p.ID != pollID {
		s.log.Debug("ignoring stale expiry", zap.String("poll", pollID))
		return
	}
	if !p.Close() {
		return
	}
	s.active = nil
	s.history = append([]*poll.Poll{p}, s.history...)

	s.broadcast(protocol.EvtPollEnded, "", pollView(p))
	s.log.Info("poll ended",
		zap.String("poll", p.ID),
		zap.Int("responses", p.TotalResponses()),
		zap.Ints("tally", p.Tally()))
}
