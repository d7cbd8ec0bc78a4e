package app

import (
	"sync"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// ProgressFeed fans out progress events to observers (proctor dashboards).
// Slow subscribers never block publishers: when a subscriber's buffer is
// full the stale event is dropped in favor of the newest one.
type ProgressFeed struct {
	mu   sync.Mutex
	subs map[chan domain.ProgressEvent]struct{}
}

func NewProgressFeed() *ProgressFeed {
	return &ProgressFeed{subs: make(map[chan domain.ProgressEvent]struct{})}
}

// Subscribe returns a channel of events and a cancel function the caller
// must invoke to avoid leaks.
func (f *ProgressFeed) Subscribe() (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, 8)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (f *ProgressFeed) Publish(ev domain.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
