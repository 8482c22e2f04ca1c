package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/emrgen/rard/internal/event"
)

// DefaultTopic receives the change events of committed mutations.
var DefaultTopic = "rard.changes"

// Publisher forwards the events of a committed mutation to downstream consumers.
type Publisher interface {
	// Publish sends the envelopes in order.
	Publish(ctx context.Context, envelopes ...*event.Envelope) error
	Close()
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)

type Nop struct{}

func NewNop() Nop {
	return Nop{}
}

func (Nop) Publish(context.Context, ...*event.Envelope) error {
	return nil
}

func (Nop) Close() {}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu        sync.Mutex
	envelopes []*event.Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, envelopes ...*event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, envelopes...)
	return nil
}

func (r *Recorder) Close() {}

// Names returns the names of the recorded envelopes in publish order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.envelopes))
	for _, e := range r.envelopes {
		names = append(names, e.Name)
	}
	return names
}

// Envelopes returns a copy of the recorded envelopes in publish order.
func (r *Recorder) Envelopes() []*event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.envelopes)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = nil
}
