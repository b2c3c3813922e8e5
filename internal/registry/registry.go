// Package registry tracks the students that have joined a session.
//
// Records are never deleted: a kicked or disconnected participant stays in
// the registry as inactive so past votes keep a named owner. The registry is
// not safe for concurrent use; the session loop owns it.
package registry

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/classpoll/pollsession/internal/errs"
)

type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"isActive"`
	Kicked   bool      `json:"kicked"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Registry struct {
	byID    map[string]*Participant
	order   []string
	maxName int
	newID   func() string
}

func New(maxNameRunes int) *Registry {
	return &Registry{
		byID:    make(map[string]*Participant),
		maxName: maxNameRunes,
		newID:   uuid.NewString,
	}
}

// Add creates a new active participant. Every call allocates a fresh id,
// even when the name matches an earlier participant.
func (r *Registry) Add(name string, now time.Time) (Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Participant{}, errs.Validation("name is empty")
	}
	if r.maxName > 0 && utf8.RuneCountInString(name) > r.maxName {
		return Participant{}, errs.Validation("name longer than %d characters", r.maxName)
	}

	p := &Participant{
		ID:       r.newID(),
		Name:     name,
		IsActive: true,
		JoinedAt: now,
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return *p, nil
}

func (r *Registry) Get(id string) (Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *Registry) IsActive(id string) bool {
	p, ok := r.byID[id]
	return ok && p.IsActive
}

// Kick deactivates an active participant for good.
func (r *Registry) Kick(id string) (Participant, error) {
	p, ok := r.byID[id]
	if !ok {
		return Participant{}, errs.NotFound("participant %q", id)
	}
	if !p.IsActive {
		return Participant{}, errs.NotFound("participant %q is not active", id)
	}
	p.IsActive = false
	p.Kicked = true
	return *p, nil
}

// Deactivate marks a participant inactive after a disconnect. It reports
// false when there was nothing to change.
func (r *Registry) Deactivate(id string) (Participant, bool) {
	p, ok := r.byID[id]
	if !ok || !p.IsActive {
		return Participant{}, false
	}
	p.IsActive = false
	return *p, true
}

// List returns every participant in join order.
func (r *Registry) List() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) ActiveCount() int {
	n := 0
	for _, p := range r.byID {
		if p.IsActive {
			n++
		}
	}
	return n
}
