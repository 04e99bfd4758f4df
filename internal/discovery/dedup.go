package discovery

import (
	"sync"
	"time"

	"github.com/arbitragex/engine/internal/coreclock"
)

// dedupWindow tracks fingerprints seen within the last `window` so that
// discovery emits at-most-once per fingerprint per window, per spec.md's
// output contract. Expired entries are swept lazily on Seen.
type dedupWindow struct {
	mu     sync.Mutex
	clock  coreclock.Clock
	window time.Duration
	seenAt map[string]time.Time
}

func newDedupWindow(clock coreclock.Clock, window time.Duration) *dedupWindow {
	return &dedupWindow{
		clock:  clock,
		window: window,
		seenAt: make(map[string]time.Time),
	}
}

// Seen reports whether fingerprint was already emitted within the window;
// if not, it records it as seen now and returns false.
func (d *dedupWindow) Seen(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if last, ok := d.seenAt[fingerprint]; ok && now.Sub(last) < d.window {
		return true
	}
	d.seenAt[fingerprint] = now

	if len(d.seenAt) > 4096 {
		d.sweepLocked(now)
	}
	return false
}

func (d *dedupWindow) sweepLocked(now time.Time) {
	for fp, at := range d.seenAt {
		if now.Sub(at) >= d.window {
			delete(d.seenAt, fp)
		}
	}
}
