package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/classpoll/pollsession/internal/errs"
)

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Sequence   uint64    `json:"sequence"`
}

// Log is an append-only message store ordered by Sequence.
type Log struct {
	messages []Message
	maxRunes int
	newID    func() string
}

func NewLog(maxRunes int) *Log {
	return &Log{maxRunes: maxRunes, newID: uuid.NewString}
}

// Append stores a message. seq comes from the session and must grow.
func (l *Log) Append(senderID, senderName, text string, seq uint64, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, errs.Validation("message is empty")
	}
	if l.maxRunes > 0 && utf8.RuneCountInString(text) > l.maxRunes {
		return Message{}, errs.Validation("message longer than %d characters", l.maxRunes)
	}
	if n := len(l.messages); n > 0 && seq <= l.messages[n-1].Sequence {
		return Message{}, fmt.Errorf("chat sequence %d not after %d", seq, l.messages[n-1].Sequence)
	}

	m := Message{
		ID:         l.newID(),
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  now,
		Sequence:   seq,
	}
	l.messages = append(l.messages, m)
	return m, nil
}

func (l *Log) Messages() []Message {
	return append([]Message(nil), l.messages...)
}

func (l *Log) Len() int { return len(l.messages) }
