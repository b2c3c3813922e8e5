// Package mirror copies broadcast events out of the process, to Redis
// pub/sub and/or NATS, for dashboards and other observers.
//
// Mirroring is fire-and-forget: the session hands events to a Forwarder,
// which never blocks the caller and drops events when its queue is full.
package mirror

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/protocol"
)

const publishTimeout = 5 * time.Second

// Publisher is one external destination for mirrored events.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, code string, typ protocol.EventType, body []byte) error
	Close() error
}

// Envelope is the JSON body every publisher receives.
type Envelope struct {
	Session string `json:"session"`
	protocol.Event
}

type item struct {
	code string
	ev   protocol.Event
}

type Forwarder struct {
	pubs  []Publisher
	queue chan item
	log   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	done    chan struct{}
}

// NewForwarder starts a forwarder that fans events out to pubs.
func NewForwarder(log *zap.Logger, buffer int, pubs ...Publisher) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	f := &Forwarder{
		pubs:  pubs,
		queue: make(chan item, buffer),
		log:   log,
		done:  make(chan struct{}),
	}
	go f.run()
	return f
}

// Publish queues ev for every publisher. It never blocks.
func (f *Forwarder) Publish(code string, ev protocol.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- item{code: code, ev: ev}:
	default:
		n := f.dropped.Add(1)
		f.log.Warn("mirror queue full, dropping event",
			zap.String("session", code),
			zap.String("event", string(ev.Type)),
			zap.Uint64("seq", ev.Seq),
			zap.Uint64("dropped_total", n))
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

func (f *Forwarder) run() {
	defer close(f.done)
	for it := range f.queue {
		body, err := json.Marshal(Envelope{Session: it.code, Event: it.ev})
		if err != nil {
			f.log.Error("marshal mirrored event", zap.String("event", string(it.ev.Type)), zap.Error(err))
			continue
		}
		for _, p := range f.pubs {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.Publish(ctx, it.code, it.ev.Type, body); err != nil {
				f.log.Warn("mirror publish failed",
					zap.String("publisher", p.Name()),
					zap.String("event", string(it.ev.Type)),
					zap.Error(err))
			}
			cancel()
		}
	}
}

// Close flushes whatever is queued, then closes every publisher.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	<-f.done

	var err error
	for _, p := range f.pubs {
		err = multierr.Append(err, p.Close())
	}
	return err
}
