package poll

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newPoll(t *testing.T) *Poll {
	t.Helper()
	p, err := New("p1", Draft{
		Question:     "2+2=?",
		Options:      []string{"3", "4"},
		CorrectFlags: []bool{false, true},
		TimerSeconds: 30,
	}, t0, DefaultLimits())
	require.NoError(t, err)
	return p
}

func TestNewRejectsBadDrafts(t *testing.T) {
	valid := Draft{Question: "q", Options: []string{"a", "b"}, CorrectFlags: []bool{true, false}, TimerSeconds: 60}

	cases := []struct {
		name  string
		tweak func(d *Draft)
	}{
		{name: "empty question", tweak: func(d *Draft) { d.Question = "   " }},
		{name: "one option", tweak: func(d *Draft) { d.Options = []string{"a"}; d.CorrectFlags = []bool{true} }},
		{name: "blank option", tweak: func(d *Draft) { d.Options = []string{"a", " "} }},
		{name: "flags mismatch", tweak: func(d *Draft) { d.CorrectFlags = []bool{true} }},
		{name: "zero timer", tweak: func(d *Draft) { d.TimerSeconds = 0 }},
		{name: "negative timer", tweak: func(d *Draft) { d.TimerSeconds = -5 }},
		{name: "timer over limit", tweak: func(d *Draft) { d.TimerSeconds = 3601 }},
		{name: "too many options", tweak: func(d *Draft) {
			d.Options = make([]string, 11)
			d.CorrectFlags = make([]bool, 11)
			for i := range d.Options {
				d.Options[i] = fmt.Sprint(i)
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			d.Options = append([]string(nil), valid.Options...)
			d.CorrectFlags = append([]bool(nil), valid.CorrectFlags...)
			tc.tweak(&d)

			p, err := New("p", d, t0, DefaultLimits())
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)
		})
	}
}

func TestNewTrimsInput(t *testing.T) {
	p, err := New("p", Draft{
		Question:     "  capital of France? ",
		Options:      []string{" Paris", "Lyon "},
		CorrectFlags: []bool{true, false},
		TimerSeconds: 45,
	}, t0, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, "capital of France?", p.Question)
	assert.Equal(t, []string{"Paris", "Lyon"}, p.Options)
	assert.True(t, p.IsActive)
	assert.Equal(t, t0.Add(45*time.Second), p.EndsAt())
}

func TestSubmitDistinctParticipantsTallies(t *testing.T) {
	p, err := New("p", Draft{
		Question:     "pick",
		Options:      []string{"a", "b", "c"},
		CorrectFlags: []bool{false, false, true},
		TimerSeconds: 10,
	}, t0, DefaultLimits())
	require.NoError(t, err)

	accepted := 0
	for i := 0; i < 25; i++ {
		if err := p.Submit(fmt.Sprintf("s%d", i), i%3); err == nil {
			accepted++
		}
	}

	tally := p.Tally()
	sum := 0
	for _, n := range tally {
		sum += n
	}
	assert.Equal(t, accepted, p.TotalResponses())
	assert.Equal(t, p.TotalResponses(), sum)
	assert.Equal(t, []int{9, 8, 8}, tally)
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	p := newPoll(t)
	require.NoError(t, p.Submit("a", 1))

	err := p.Submit("a", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrState))
	assert.Equal(t, []int{0, 1}, p.Tally())
	assert.Equal(t, 1, p.TotalResponses())
}

func TestSubmitOutOfRange(t *testing.T) {
	p := newPoll(t)
	for _, idx := range []int{-1, 2, 99} {
		err := p.Submit("a", idx)
		assert.True(t, errors.Is(err, errs.ErrValidation), "index %d: got %v", idx, err)
	}
	assert.Equal(t, 0, p.TotalResponses())
	assert.False(t, p.HasVoted("a"))
}

func TestSubmitAfterClose(t *testing.T) {
	p := newPoll(t)
	require.True(t, p.Close())

	err := p.Submit("a", 0)
	assert.True(t, errors.Is(err, errs.ErrState))
}

func TestCloseIsIdempotent(t *testing.T) {
	p := newPoll(t)
	assert.True(t, p.Close())
	assert.False(t, p.Close())
	assert.False(t, p.IsActive)
}

func TestViewProjection(t *testing.T) {
	p := newPoll(t)
	require.NoError(t, p.Submit("a", 1))
	require.NoError(t, p.Submit("b", 0))

	student := p.View(AudienceStudent)
	assert.Nil(t, student.CorrectAnswers)
	assert.Equal(t, []int{1, 1}, student.Responses)
	assert.Equal(t, []int{50, 50}, student.Percentages)
	assert.Equal(t, 2, student.TotalResponses)

	teacher := p.View(AudienceTeacher)
	assert.Equal(t, []bool{false, true}, teacher.CorrectAnswers)

	p.Close()
	closed := p.View(AudienceStudent)
	assert.Equal(t, []bool{false, true}, closed.CorrectAnswers)
	assert.False(t, closed.IsActive)
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		votes, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{3, 3, 100},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d of %d", tc.votes, tc.total), func(t *testing.T) {
			assert.Equal(t, tc.want, Percentage(tc.votes, tc.total))
		})
	}
}
