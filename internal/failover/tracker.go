package failover

import (
	"log/slog"
	"sync"
	"time"
)

// HealthStatus is a point-in-time snapshot of one provider's health record.
type HealthStatus struct {
	Healthy           bool
	ConsecutiveErrors int
	LastTransition    time.Time
}

// record is the mutable health state of one provider. It is owned exclusively
// by the [Tracker]; no other component touches it directly.
type record struct {
	mu                sync.Mutex
	healthy           bool
	consecutiveErrors int
	lastTransition    time.Time
}

// Tracker maintains per-provider rolling error counters and a binary health
// flag with threshold hysteresis. A provider flips unhealthy after
// errorThreshold consecutive failures and flips back only through an explicit
// success (live call or probe), never by time alone.
//
// Tracker is safe for concurrent use; each record has its own lock which is
// held only for the read-modify-write, never across network calls.
type Tracker struct {
	mu        sync.RWMutex // guards records map and threshold
	threshold int
	records   map[string]*record
	hub       *Hub
}

// newTracker creates a Tracker with a fresh, healthy record per provider name.
func newTracker(threshold int, hub *Hub, names []string) *Tracker {
	t := &Tracker{
		threshold: threshold,
		records:   make(map[string]*record, len(names)),
		hub:       hub,
	}
	for _, name := range names {
		t.records[name] = &record{healthy: true}
	}
	return t
}

// lookup returns the record for name, or nil if the name is unknown.
func (t *Tracker) lookup(name string) *record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[name]
}

// RecordSuccess resets the provider's consecutive error count. If the provider
// was unhealthy it flips back to healthy and a recovered event is emitted.
// A no-op for already-healthy providers beyond the counter reset.
func (t *Tracker) RecordSuccess(name string) {
	rec := t.lookup(name)
	if rec == nil {
		slog.Warn("health tracker: success for unknown provider", "provider", name)
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.consecutiveErrors = 0
	if !rec.healthy {
		rec.healthy = true
		rec.lastTransition = time.Now()
		slog.Info("provider recovered", "provider", name)
		// Published under the record lock so a provider's transition events
		// reach the hub in transition order. The hub send never blocks.
		t.hub.publish(Event{
			Type:     EventRecovered,
			Time:     time.Now(),
			Provider: name,
		})
	}
}

// RecordFailure increments the provider's consecutive error count. When the
// count reaches the threshold and the provider was healthy, it flips unhealthy
// and an unhealthy event carrying err is emitted. Unknown names are logged and
// ignored.
func (t *Tracker) RecordFailure(name string, err error) {
	rec := t.lookup(name)
	if rec == nil {
		slog.Warn("health tracker: failure for unknown provider", "provider", name)
		return
	}

	t.mu.RLock()
	threshold := t.threshold
	t.mu.RUnlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.consecutiveErrors++
	if rec.healthy && rec.consecutiveErrors >= threshold {
		rec.healthy = false
		rec.lastTransition = time.Now()
		slog.Warn("provider marked unhealthy",
			"provider", name,
			"consecutive_errors", rec.consecutiveErrors,
			"error", err,
		)
		// Published under the record lock, matching RecordSuccess.
		t.hub.publish(Event{
			Type:     EventUnhealthy,
			Time:     time.Now(),
			Provider: name,
			Err:      err.Error(),
		})
	}
}

// IsHealthy reports whether the named provider is currently healthy. Unknown
// providers are reported unhealthy.
func (t *Tracker) IsHealthy(name string) bool {
	st, ok := t.Status(name)
	return ok && st.Healthy
}

// Status returns a snapshot of the provider's health record.
func (t *Tracker) Status(name string) (HealthStatus, bool) {
	rec := t.lookup(name)
	if rec == nil {
		return HealthStatus{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return HealthStatus{
		Healthy:           rec.healthy,
		ConsecutiveErrors: rec.consecutiveErrors,
		LastTransition:    rec.lastTransition,
	}, true
}

// resync replaces the tracked provider set after a reconfiguration. Records of
// names that persist keep their health state; new names start healthy and
// removed names are dropped.
func (t *Tracker) resync(threshold int, names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.threshold = threshold
	next := make(map[string]*record, len(names))
	for _, name := range names {
		if rec, ok := t.records[name]; ok {
			next[name] = rec
		} else {
			next[name] = &record{healthy: true}
		}
	}
	t.records = next
}
