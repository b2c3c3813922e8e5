package session

import (
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/poll"
)

// armExpiry schedules the one-shot expiry for p. The callback only enqueues;
// the close itself runs on the loop like any other mutation.
func (s *Session) armExpiry(p *poll.Poll) {
	id := p.ID
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = s.clock.AfterFunc(p.Duration(), func() {
		s.enqueue(Expire{PollID: id})
	})

	s.log.Debug("scheduled poll expiry",
		zap.String("poll", id),
		zap.Time("deadline", p.EndsAt()),
		zap.Duration("duration", p.Duration()))
}
