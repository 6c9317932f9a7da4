package transport

import (
	"sync"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

// Inproc is an in-memory Transport wiring every subscribed rank's channel
// to a shared registry, for single-process multi-rank simulation and
// tests (no analogue in the teacher's adapters — this exists purely to
// exercise the overlay without a real broker).
type Inproc struct {
	mu    sync.Mutex
	chans map[idset.Rank]chan Frame
}

// NewInproc creates an empty in-memory transport registry. Share one
// instance across every simulated rank in a process.
func NewInproc() *Inproc {
	return &Inproc{chans: make(map[idset.Rank]chan Frame)}
}

// Subscribe implements Transport.
func (t *Inproc) Subscribe(self idset.Rank) (<-chan Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Frame, 256)
	t.chans[self] = ch
	return ch, nil
}

// SendDown implements Transport.
func (t *Inproc) SendDown(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error {
	return t.send(Frame{To: to, Direction: Action, Type: typ, Idset: ranks, Data: data})
}

// SendUp implements Transport.
func (t *Inproc) SendUp(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error {
	return t.send(Frame{To: to, Direction: Notify, Type: typ, Idset: ranks, Data: data})
}

func (t *Inproc) send(f Frame) error {
	t.mu.Lock()
	ch, ok := t.chans[f.To]
	t.mu.Unlock()
	if !ok {
		return nil // destination rank not (yet) running in this process
	}
	ch <- f
	return nil
}

// Close implements Transport.
func (t *Inproc) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.chans {
		close(ch)
	}
	t.chans = make(map[idset.Rank]chan Frame)
	return nil
}
