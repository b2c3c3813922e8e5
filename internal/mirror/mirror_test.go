package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/protocol"
)

type published struct {
	code string
	typ  protocol.EventType
	body []byte
}

type fakePublisher struct {
	name     string
	closeErr error
	pubErr   error

	// when set, Publish signals started and waits for release
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	got    []published
	closed bool
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(_ context.Context, code string, typ protocol.EventType, body []byte) error {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, published{code: code, typ: typ, body: body})
	return f.pubErr
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakePublisher) events() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.got...)
}

func TestForwarder_FansOutToEveryPublisher(t *testing.T) {
	a := &fakePublisher{name: "a"}
	b := &fakePublisher{name: "b", pubErr: errors.New("boom")}
	f := NewForwarder(zap.NewNop(), 8, a, b)

	f.Publish("room", protocol.Event{Type: protocol.EvtPollCreated, Seq: 3, Data: map[string]any{"question": "q"}})
	f.Publish("room", protocol.Event{Type: protocol.EvtPollEnded, Seq: 4})
	require.NoError(t, f.Close())

	for _, p := range []*fakePublisher{a, b} {
		got := p.events()
		require.Len(t, got, 2, p.name)
		assert.Equal(t, "room", got[0].code)
		assert.Equal(t, protocol.EvtPollCreated, got[0].typ)
		assert.Equal(t, protocol.EvtPollEnded, got[1].typ)
		assert.True(t, p.closed)
	}

	assert.JSONEq(t,
		`{"session":"room","type":"poll-created","seq":3,"data":{"question":"q"}}`,
		string(a.events()[0].body))
}

func TestForwarder_DropsWhenQueueIsFull(t *testing.T) {
	slow := &fakePublisher{name: "slow", started: make(chan struct{}), release: make(chan struct{})}
	f := NewForwarder(zap.NewNop(), 1, slow)

	f.Publish("room", protocol.Event{Type: protocol.EvtPollUpdated, Seq: 1})
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatal("publisher never started")
	}

	// The first event is in flight; one more fits the queue, the third is dropped.
	f.Publish("room", protocol.Event{Type: protocol.EvtPollUpdated, Seq: 2})
	f.Publish("room", protocol.Event{Type: protocol.EvtPollUpdated, Seq: 3})
	assert.EqualValues(t, 1, f.Dropped())

	go func() {
		for range slow.started {
		}
	}()
	close(slow.release)
	require.NoError(t, f.Close())
	close(slow.started)

	got := slow.events()
	require.Len(t, got, 2)

	var last Envelope
	require.NoError(t, json.Unmarshal(got[1].body, &last))
	assert.EqualValues(t, 2, last.Seq)
}

func TestForwarder_CloseCombinesErrors(t *testing.T) {
	a := &fakePublisher{name: "a", closeErr: errors.New("a failed")}
	b := &fakePublisher{name: "b", closeErr: errors.New("b failed")}
	f := NewForwarder(zap.NewNop(), 1, a, b)

	err := f.Close()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	// Second close is a no-op, and publishing after close is ignored.
	assert.NoError(t, f.Close())
	f.Publish("room", protocol.Event{Type: protocol.EvtPollEnded})
	assert.Empty(t, a.events())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "pollsession.classroom.poll-ended", Subject("pollsession", "classroom", protocol.EvtPollEnded))
	assert.Equal(t, "ps.room_7_.new-message", Subject("ps", "room.7*", protocol.EvtNewMessage))
}
