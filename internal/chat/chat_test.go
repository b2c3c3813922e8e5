package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestAppendOrdersBySequence(t *testing.T) {
	l := NewLog(0)

	m1, err := l.Append("t", "Teacher", "welcome", 3, now)
	require.NoError(t, err)
	m2, err := l.Append("s1", "Ada", " hi ", 7, now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, "hi", m2.Text)
	assert.NotEqual(t, m1.ID, m2.ID)

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(3), msgs[0].Sequence)
	assert.Equal(t, uint64(7), msgs[1].Sequence)
}

func TestAppendRejects(t *testing.T) {
	l := NewLog(5)
	_, err := l.Append("s", "S", "   ", 1, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = l.Append("s", "S", strings.Repeat("y", 6), 1, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = l.Append("s", "S", "ok", 4, now)
	require.NoError(t, err)
	_, err = l.Append("s", "S", "late", 4, now)
	assert.Error(t, err)

	assert.Equal(t, 1, l.Len())
}

func TestMessagesIsACopy(t *testing.T) {
	l := NewLog(0)
	_, err := l.Append("s", "S", "one", 1, now)
	require.NoError(t, err)

	msgs := l.Messages()
	msgs[0].Text = "changed"
	assert.Equal(t, "one", l.Messages()[0].Text)
}
