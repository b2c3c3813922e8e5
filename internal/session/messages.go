package session

import (
	"github.com/classpoll/pollsession/internal/protocol"
)

// Msg is anything the session loop accepts on its inbox.
type Msg interface{ isSessionMsg() }

// Attach registers a transport connection. It receives nothing until it joins.
type Attach struct {
	ConnID string
	Outbox chan protocol.Event
	Reply  chan error
}

func (Attach) isSessionMsg() {}

// Detach is a transport disconnect.
type Detach struct{ ConnID string }

func (Detach) isSessionMsg() {}

type FromClient struct {
	ConnID string
	Req    protocol.Request
	Reply  chan Result
}

func (FromClient) isSessionMsg() {}

// Expire is sent by the poll timer.
type Expire struct{ PollID string }

func (Expire) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Result struct {
	Value any
	Err   error
}

type Stats struct {
	Code               string `json:"code"`
	Seq                uint64 `json:"seq"`
	Connections        int    `json:"connections"`
	Participants       int    `json:"participants"`
	ActiveParticipants int    `json:"activeParticipants"`
	ActivePollID       string `json:"activePollId,omitempty"`
	HistoryLength      int    `json:"historyLength"`
	ChatLength         int    `json:"chatLength"`
}

// View is a point-in-time copy of the session taken inside the loop.
type View struct {
	Stats Stats
	State protocol.TeacherSnapshot
}
