package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/poll"
)

type RequestType string

const (
	ReqJoinTeacher  RequestType = "join-as-teacher"
	ReqJoinStudent  RequestType = "join-as-student"
	ReqCreatePoll   RequestType = "create-poll"
	ReqSubmitAnswer RequestType = "submit-answer"
	ReqSendMessage  RequestType = "send-message"
	ReqKickStudent  RequestType = "kick-student"
)

type ClientMessage struct {
	Type RequestType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request is one decoded client request. The set is closed: only the
// types in this file implement it.
type Request interface {
	Type() RequestType
	isRequest()
}

type JoinTeacher struct{}

type JoinStudent struct {
	Name string
}

type CreatePoll struct {
	Draft poll.Draft
}

type SubmitAnswer struct {
	OptionIndex int
}

type SendMessage struct {
	Text string
}

type KickStudent struct {
	ParticipantID string
}

func (JoinTeacher) Type() RequestType  { return ReqJoinTeacher }
func (JoinStudent) Type() RequestType  { return ReqJoinStudent }
func (CreatePoll) Type() RequestType   { return ReqCreatePoll }
func (SubmitAnswer) Type() RequestType { return ReqSubmitAnswer }
func (SendMessage) Type() RequestType  { return ReqSendMessage }
func (KickStudent) Type() RequestType  { return ReqKickStudent }

func (JoinTeacher) isRequest()  {}
func (JoinStudent) isRequest()  {}
func (CreatePoll) isRequest()   {}
func (SubmitAnswer) isRequest() {}
func (SendMessage) isRequest()  {}
func (KickStudent) isRequest()  {}

// Decode parses one client frame. The returned RequestType is set whenever
// the envelope itself parsed, so errors can be attributed to a request.
func Decode(raw []byte) (Request, RequestType, error) {
	var cm ClientMessage
	if err := json.Unmarshal(raw, &cm); err != nil {
		return nil, "", errs.Validation("bad json")
	}

	switch cm.Type {
	case ReqJoinTeacher:
		return JoinTeacher{}, cm.Type, nil

	case ReqJoinStudent:
		var p struct {
			Name string `json:"name"`
		}
		if err := decodeData(cm.Data, &p); err != nil {
			return nil, cm.Type, err
		}
		return JoinStudent{Name: p.Name}, cm.Type, nil

	case ReqCreatePoll:
		var p struct {
			Question       string   `json:"question"`
			Options        []string `json:"options"`
			CorrectAnswers []bool   `json:"correctAnswers"`
			CorrectFlags   []bool   `json:"correctFlags"`
			Timer          *int     `json:"timer"`
			TimerSeconds   *int     `json:"timerSeconds"`
		}
		if err := decodeData(cm.Data, &p); err != nil {
			return nil, cm.Type, err
		}
		d := poll.Draft{Question: p.Question, Options: p.Options, CorrectFlags: p.CorrectAnswers}
		if d.CorrectFlags == nil {
			d.CorrectFlags = p.CorrectFlags
		}
		switch {
		case p.Timer != nil:
			d.TimerSeconds = *p.Timer
		case p.TimerSeconds != nil:
			d.TimerSeconds = *p.TimerSeconds
		default:
			return nil, cm.Type, errs.Validation("timer is required")
		}
		return CreatePoll{Draft: d}, cm.Type, nil

	case ReqSubmitAnswer:
		var p struct {
			OptionIndex *int `json:"optionIndex"`
		}
		if err := decodeData(cm.Data, &p); err != nil {
			return nil, cm.Type, err
		}
		if p.OptionIndex == nil {
			return nil, cm.Type, errs.Validation("optionIndex is required")
		}
		return SubmitAnswer{OptionIndex: *p.OptionIndex}, cm.Type, nil

	case ReqSendMessage:
		var p struct {
			Message *string `json:"message"`
			Text    *string `json:"text"`
		}
		if err := decodeData(cm.Data, &p); err != nil {
			return nil, cm.Type, err
		}
		var text string
		switch {
		case p.Message != nil:
			text = *p.Message
		case p.Text != nil:
			text = *p.Text
		}
		return SendMessage{Text: text}, cm.Type, nil

	case ReqKickStudent:
		// The original clients send the bare id; structured callers send an object.
		var id string
		if trimmed := bytes.TrimSpace(cm.Data); len(trimmed) > 0 && trimmed[0] == '"' {
			if err := json.Unmarshal(cm.Data, &id); err != nil {
				return nil, cm.Type, errs.Validation("bad participant id")
			}
		} else {
			var p struct {
				ParticipantID string `json:"participantId"`
			}
			if err := decodeData(cm.Data, &p); err != nil {
				return nil, cm.Type, err
			}
			id = p.ParticipantID
		}
		if id == "" {
			return nil, cm.Type, errs.Validation("participantId is required")
		}
		return KickStudent{ParticipantID: id}, cm.Type, nil

	case "":
		return nil, "", errs.Validation("missing type")

	default:
		return nil, cm.Type, errs.Validation("unknown type %q", cm.Type)
	}
}

func decodeData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errs.Validation("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Validation("bad data: %v", err)
	}
	return nil
}
