package hub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/errs"
	"github.com/classpoll/pollsession/internal/session"
)

func newTestHub(t *testing.T) (*Hub, *atomic.Int32) {
	t.Helper()
	var created atomic.Int32
	h := NewHub(context.Background(), func(ctx context.Context, code string) *session.Session {
		created.Add(1)
		return session.New(ctx, session.DefaultConfig(code))
	}, zap.NewNop())
	t.Cleanup(h.Shutdown)
	return h, &created
}

func TestHub_EnsureGet_SamePointer(t *testing.T) {
	ctx := context.Background()
	h, created := newTestHub(t)

	s1, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	s2, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	s3, err := h.Get(ctx, "ZED123")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Same(t, s1, s3)
	assert.Equal(t, "ZED123", s1.Code())
	assert.EqualValues(t, 1, created.Load())
}

func TestHub_GetUnknown(t *testing.T) {
	h, _ := newTestHub(t)
	_, err := h.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestHub_EnsureRejectsBlankCode(t *testing.T) {
	h, _ := newTestHub(t)
	_, err := h.Ensure(context.Background(), "  ")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestHub_RemoveStopsSession(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t)
	s, err := h.Ensure(ctx, "room")
	require.NoError(t, err)

	require.NoError(t, h.Remove(ctx, "room"))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session still running after remove")
	}
	_, err = h.Get(ctx, "room")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestHub_ForgetsSessionStoppedElsewhere(t *testing.T) {
	ctx := context.Background()
	h, created := newTestHub(t)
	s, err := h.Ensure(ctx, "room")
	require.NoError(t, err)

	s.Shutdown()

	require.Eventually(t, func() bool {
		_, err := h.Get(ctx, "room")
		return errors.Is(err, errs.ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	fresh, err := h.Ensure(ctx, "room")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.EqualValues(t, 2, created.Load())

	select {
	case <-fresh.Done():
		t.Fatal("replacement session stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ShutdownStopsEverything(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t)
	a, err := h.Ensure(ctx, "a")
	require.NoError(t, err)
	b, err := h.Ensure(ctx, "b")
	require.NoError(t, err)

	h.Shutdown()

	for _, s := range []*session.Session{a, b} {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatalf("session %s still running", s.Code())
		}
	}
	_, err = h.Ensure(ctx, "c")
	assert.True(t, errors.Is(err, errs.ErrClosed))
}
