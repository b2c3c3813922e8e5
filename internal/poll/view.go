package poll

import (
	"math"
	"time"
)

// Audience selects which projection of a poll a recipient may see.
type Audience int

const (
	AudienceStudent Audience = iota
	AudienceTeacher
)

// View is the aggregate, per-recipient payload of a poll. It never carries
// individual votes.
type View struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Options        []string  `json:"options"`
	CorrectAnswers []bool    `json:"correctAnswers,omitempty"`
	Timer          int       `json:"timer"`
	CreatedAt      time.Time `json:"createdAt"`
	EndsAt         time.Time `json:"endsAt"`
	IsActive       bool      `json:"isActive"`
	Responses      []int     `json:"responses"`
	Percentages    []int     `json:"percentages"`
	TotalResponses int       `json:"totalResponses"`
}

// RevealsCorrect reports whether the correct flags go to aud.
// Teachers always see them; everyone sees them once the poll is closed.
func (p *Poll) RevealsCorrect(aud Audience) bool {
	return aud == AudienceTeacher || !p.IsActive
}

func (p *Poll) View(aud Audience) View {
	tally := p.Tally()
	total := p.TotalResponses()

	v := View{
		ID:             p.ID,
		Question:       p.Question,
		Options:        append([]string(nil), p.Options...),
		Timer:          p.TimerSeconds,
		CreatedAt:      p.CreatedAt,
		EndsAt:         p.EndsAt(),
		IsActive:       p.IsActive,
		Responses:      tally,
		Percentages:    make([]int, len(tally)),
		TotalResponses: total,
	}
	for i, n := range tally {
		v.Percentages[i] = Percentage(n, total)
	}
	if p.RevealsCorrect(aud) {
		v.CorrectAnswers = append([]bool(nil), p.CorrectFlags...)
	}
	return v
}

// Percentage is round(votes/total*100), and 0 when nobody has answered.
func Percentage(votes, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(votes) * 100 / float64(total)))
}
