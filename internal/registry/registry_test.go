package registry

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

func TestAddValidatesName(t *testing.T) {
	r := New(10)

	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain", input: "Ada"},
		{name: "trimmed", input: "  Linus  "},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: " \t ", wantErr: true},
		{name: "too long", input: strings.Repeat("x", 11), wantErr: true},
		{name: "multibyte within limit", input: "Zoë Müller"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := r.Add(tc.input, now)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tc.input), p.Name)
			assert.True(t, p.IsActive)
			assert.NotEmpty(t, p.ID)
		})
	}
}

func TestSameNameGetsNewID(t *testing.T) {
	r := New(0)
	first, err := r.Add("Cleo", now)
	require.NoError(t, err)
	_, err = r.Kick(first.ID)
	require.NoError(t, err)

	second, err := r.Add("Cleo", now)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	old, ok := r.Get(first.ID)
	require.True(t, ok)
	assert.False(t, old.IsActive)
	assert.True(t, old.Kicked)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.ActiveCount())
}

func TestKick(t *testing.T) {
	r := New(0)
	p, err := r.Add("Ben", now)
	require.NoError(t, err)

	kicked, err := r.Kick(p.ID)
	require.NoError(t, err)
	assert.False(t, kicked.IsActive)
	assert.False(t, r.IsActive(p.ID))

	_, err = r.Kick(p.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound), "second kick: %v", err)

	_, err = r.Kick("missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeactivate(t *testing.T) {
	r := New(0)
	p, err := r.Add("Dee", now)
	require.NoError(t, err)

	got, changed := r.Deactivate(p.ID)
	assert.True(t, changed)
	assert.False(t, got.IsActive)
	assert.False(t, got.Kicked)

	_, changed = r.Deactivate(p.ID)
	assert.False(t, changed)

	_, err = r.Kick(p.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestListKeepsJoinOrder(t *testing.T) {
	r := New(0)
	for _, n := range []string{"a", "b", "c"} {
		_, err := r.Add(n, now)
		require.NoError(t, err)
	}
	var names []string
	for _, p := range r.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
