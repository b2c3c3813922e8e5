// Package poll holds the lifecycle of a single timed multiple-choice poll.
//
// A Poll is a plain state machine: Active after New, Closed after Close.
// It never schedules anything and never talks to clients; the session
// coordinator owns it and decides when each transition happens.
package poll

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/classpoll/pollsession/internal/errs"
)

const MinOptions = 2

// Draft is a create-poll request before validation.
type Draft struct {
	Question     string
	Options      []string
	CorrectFlags []bool
	TimerSeconds int
}

type Limits struct {
	MaxTimerSeconds  int
	MaxQuestionRunes int
	MaxOptions       int
}

func DefaultLimits() Limits {
	return Limits{MaxTimerSeconds: 3600, MaxQuestionRunes: 500, MaxOptions: 10}
}

type Poll struct {
	ID           string
	Question     string
	Options      []string
	CorrectFlags []bool
	TimerSeconds int
	CreatedAt    time.Time
	IsActive     bool

	// participant id -> option index
	votes map[string]int
}

// Normalize trims the draft and checks it against lim.
func Normalize(d Draft, lim Limits) (Draft, error) {
	out := Draft{
		Question:     strings.TrimSpace(d.Question),
		TimerSeconds: d.TimerSeconds,
	}
	if out.Question == "" {
		return Draft{}, errs.Validation("question is empty")
	}
	if lim.MaxQuestionRunes > 0 && utf8.RuneCountInString(out.Question) > lim.MaxQuestionRunes {
		return Draft{}, errs.Validation("question longer than %d characters", lim.MaxQuestionRunes)
	}

	if len(d.Options) < MinOptions {
		return Draft{}, errs.Validation("need at least %d options, got %d", MinOptions, len(d.Options))
	}
	if lim.MaxOptions > 0 && len(d.Options) > lim.MaxOptions {
		return Draft{}, errs.Validation("at most %d options allowed", lim.MaxOptions)
	}
	out.Options = make([]string, len(d.Options))
	for i, opt := range d.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return Draft{}, errs.Validation("option %d is empty", i)
		}
		out.Options[i] = opt
	}

	if len(d.CorrectFlags) != len(d.Options) {
		return Draft{}, errs.Validation("correct flags length %d does not match %d options", len(d.CorrectFlags), len(d.Options))
	}
	out.CorrectFlags = append([]bool(nil), d.CorrectFlags...)

	if d.TimerSeconds <= 0 {
		return Draft{}, errs.Validation("timer must be a positive number of seconds")
	}
	if lim.MaxTimerSeconds > 0 && d.TimerSeconds > lim.MaxTimerSeconds {
		return Draft{}, errs.Validation("timer longer than %d seconds", lim.MaxTimerSeconds)
	}
	return out, nil
}

// New validates d and returns an active poll created at now.
func New(id string, d Draft, now time.Time, lim Limits) (*Poll, error) {
	nd, err := Normalize(d, lim)
	if err != nil {
		return nil, err
	}
	return &Poll{
		ID:           id,
		Question:     nd.Question,
		Options:      nd.Options,
		CorrectFlags: nd.CorrectFlags,
		TimerSeconds: nd.TimerSeconds,
		CreatedAt:    now,
		IsActive:     true,
		votes:        make(map[string]int),
	}, nil
}

func (p *Poll) Duration() time.Duration {
	return time.Duration(p.TimerSeconds) * time.Second
}

func (p *Poll) EndsAt() time.Time {
	return p.CreatedAt.Add(p.Duration())
}

// Submit records one vote for participantID. The caller is responsible for
// checking that the participant is allowed to vote at all.
func (p *Poll) Submit(participantID string, optionIndex int) error {
	if !p.IsActive {
		return errs.State("poll %s is closed", p.ID)
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return errs.Validation("option index %d out of range [0,%d)", optionIndex, len(p.Options))
	}
	if _, ok := p.votes[participantID]; ok {
		return errs.State("already answered")
	}
	p.votes[participantID] = optionIndex
	return nil
}

// Close ends the poll. It reports false when the poll was already closed.
func (p *Poll) Close() bool {
	if !p.IsActive {
		return false
	}
	p.IsActive = false
	return true
}

func (p *Poll) HasVoted(participantID string) bool {
	_, ok := p.votes[participantID]
	return ok
}

func (p *Poll) Tally() []int {
	tally := make([]int, len(p.Options))
	for _, idx := range p.votes {
		tally[idx]++
	}
	return tally
}

func (p *Poll) TotalResponses() int {
	return len(p.votes)
}
