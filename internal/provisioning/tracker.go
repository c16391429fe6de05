package provisioning

import (
	"sort"
	"sync"
	"time"
)

// DefaultClaimTimeout is how long an announced device stays claimable.
const DefaultClaimTimeout = 5 * time.Minute

// Logger is the logging surface of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// entry is one unclaimed device. gen identifies the announcement that
// created it so an expiry timer can tell whether it still owns the entry.
type entry struct {
	confirmed bool
	timer     *time.Timer
	gen       uint64
}

// Tracker holds devices that announced themselves but are not claimed yet.
//
// Lifecycle per device id:
//
//	Online (unconfirmed) -> Confirmed -> Claimed | Expired
//
// Every entry's timer ends exactly once: it fires, or it is stopped by
// FinalizeClaim, or it is stopped and replaced by a re-announcement.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextGen uint64
	timeout time.Duration
	logger  Logger
}

// NewTracker creates a tracker whose entries expire after timeout.
// A non-positive timeout uses DefaultClaimTimeout.
func NewTracker(timeout time.Duration, logger Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultClaimTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Tracker{
		entries: make(map[string]*entry),
		timeout: timeout,
		logger:  logger,
	}
}

// Online records that deviceID is waiting for a physical confirmation.
// A repeated announcement resets the entry to unconfirmed and restarts
// its expiry window.
func (t *Tracker) Online(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.entries[deviceID]; ok {
		prev.timer.Stop()
	}

	t.nextGen++
	gen := t.nextGen
	t.entries[deviceID] = &entry{
		gen:   gen,
		timer: time.AfterFunc(t.timeout, func() { t.expire(deviceID, gen) }),
	}

	t.logger.Info("device announced, waiting for confirmation", "device_id", deviceID)
}

// Confirm marks deviceID as physically confirmed. A confirm without a
// preceding announcement is ignored.
func (t *Tracker) Confirm(deviceID string) {
	t.mu.Lock()
	e, ok := t.entries[deviceID]
	if ok {
		e.confirmed = true
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("confirm for unknown device ignored", "device_id", deviceID)
		return
	}
	t.logger.Info("device confirmed", "device_id", deviceID)
}

// IsConfirmed reports whether deviceID is announced and confirmed.
func (t *Tracker) IsConfirmed(deviceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[deviceID]
	return ok && e.confirmed
}

// FirstConfirmed returns a confirmed device id waiting to be claimed,
// choosing the lowest id when several are ready.
func (t *Tracker) FirstConfirmed() (string, bool) {
	t.mu.Lock()
	var ready []string
	for id, e := range t.entries {
		if e.confirmed {
			ready = append(ready, id)
		}
	}
	t.mu.Unlock()

	if len(ready) == 0 {
		return "", false
	}
	sort.Strings(ready)
	return ready[0], true
}

// FinalizeClaim removes deviceID and stops its timer. It is safe to call
// for ids that are not tracked.
func (t *Tracker) FinalizeClaim(deviceID string) {
	t.mu.Lock()
	e, ok := t.entries[deviceID]
	if ok {
		e.timer.Stop()
		delete(t.entries, deviceID)
	}
	t.mu.Unlock()

	if ok {
		t.logger.Info("claim finalized", "device_id", deviceID)
	}
}

// Pending returns the number of tracked devices.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// expire drops deviceID if the entry is still the one created by gen.
func (t *Tracker) expire(deviceID string, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[deviceID]
	current := ok && e.gen == gen
	if current {
		delete(t.entries, deviceID)
	}
	t.mu.Unlock()

	if current {
		t.logger.Info("claim window expired", "device_id", deviceID)
	}
}
