package protocol

import (
	"github.com/classpoll/pollsession/internal/chat"
	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/poll"
	"github.com/classpoll/pollsession/internal/registry"
)

type EventType string

const (
	EvtTeacherJoined      EventType = "teacher-joined"
	EvtStudentJoined      EventType = "student-joined"
	EvtParticipantJoined  EventType = "participant-joined"
	EvtParticipantUpdated EventType = "participant-updated"
	EvtPollCreated        EventType = "poll-created"
	EvtPollUpdated        EventType = "poll-updated"
	EvtPollEnded          EventType = "poll-ended"
	EvtAnswerSubmitted    EventType = "answer-submitted"
	EvtNewMessage         EventType = "new-message"
	EvtKickedOut          EventType = "kicked-out"
	EvtError              EventType = "error"
)

// Event is one outbound frame. Seq orders every event a session emits;
// error frames are not part of that order and carry no seq.
type Event struct {
	Type EventType `json:"type"`
	Seq  uint64    `json:"seq,omitempty"`
	Data any       `json:"data,omitempty"`
}

type TeacherSnapshot struct {
	CurrentPoll  *poll.View             `json:"currentPoll"`
	PollHistory  []poll.View            `json:"pollHistory"`
	Participants []registry.Participant `json:"participants"`
	ChatMessages []chat.Message         `json:"chatMessages"`
}

type StudentSnapshot struct {
	Participant  registry.Participant `json:"participant"`
	CurrentPoll  *poll.View           `json:"currentPoll"`
	HasAnswered  bool                 `json:"hasAnswered"`
	ChatMessages []chat.Message       `json:"chatMessages"`
}

type AnswerReceipt struct {
	CurrentPoll poll.View `json:"currentPoll"`
	OptionIndex int       `json:"optionIndex"`
}

type ErrorPayload struct {
	Code    errs.Code   `json:"code"`
	Message string      `json:"message"`
	Request RequestType `json:"request,omitempty"`
}

func ErrorEvent(req RequestType, err error) Event {
	return Event{
		Type: EvtError,
		Data: ErrorPayload{Code: errs.CodeOf(err), Message: err.Error(), Request: req},
	}
}
