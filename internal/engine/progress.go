package engine

import (
	"slices"
	"sync"

	"github.com/Veraticus/sift/internal/model"
)

// ProgressTracker holds the live progress of a batch. Updates never wait on
// observers: a single dispatch goroutine delivers snapshots one at a time,
// outside the lock. A slow observer may skip intermediate snapshots but always
// receives the latest one, so callers see last-write-wins progress.
type ProgressTracker struct {
	observers   []ProgressObserver
	progress    model.Progress
	idle        *sync.Cond
	seq         uint64
	delivered   uint64
	dispatching bool
	mu          sync.Mutex
}

// NewProgressTracker creates a tracker that notifies observers on every change.
func NewProgressTracker(observers ...ProgressObserver) *ProgressTracker {
	t := &ProgressTracker{observers: observers}
	t.idle = sync.NewCond(&t.mu)
	return t
}

// Subscribe adds an observer.
func (t *ProgressTracker) Subscribe(o ProgressObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Snapshot returns the latest progress.
func (t *ProgressTracker) Snapshot() model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Flush blocks until every observer has seen the latest snapshot.
func (t *ProgressTracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.dispatching {
		t.idle.Wait()
	}
}

// Reset starts a new batch of total documents.
func (t *ProgressTracker) Reset(total int) {
	t.update(func(p *model.Progress) {
		*p = model.Progress{Total: total}
	})
}

// Started records the document a worker just picked up.
func (t *ProgressTracker) Started(fileName string) {
	t.update(func(p *model.Progress) {
		p.CurrentFileName = fileName
	})
}

// Completed counts one finished document, successful or not.
func (t *ProgressTracker) Completed() {
	t.update(func(p *model.Progress) {
		p.Current++
	})
}

func (t *ProgressTracker) update(fn func(p *model.Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.progress)
	t.seq++
	if len(t.observers) > 0 && !t.dispatching {
		t.dispatching = true
		go t.dispatch()
	}
}

func (t *ProgressTracker) dispatch() {
	for {
		t.mu.Lock()
		if t.delivered == t.seq {
			t.dispatching = false
			t.idle.Broadcast()
			t.mu.Unlock()
			return
		}
		snapshot := t.progress
		observers := slices.Clone(t.observers)
		t.delivered = t.seq
		t.mu.Unlock()

		for _, o := range observers {
			o.OnProgress(snapshot)
		}
	}
}
