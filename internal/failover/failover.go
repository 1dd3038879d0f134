// Package failover implements the multi-provider failover orchestrator at the
// heart of Vocalis.
//
// The central type is [Orchestrator], a generic priority-ordered set of
// interchangeable provider backends with live health tracking. Each call is
// executed against the currently healthiest provider; on failure the next
// eligible provider is tried transparently, health counters are updated, and a
// background monitor loop probes unhealthy providers so that recovered
// backends are reinstated automatically.
//
// All types are safe for concurrent use.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Registration declares one provider backend inside an [Orchestrator].
type Registration[T any] struct {
	// Name uniquely identifies the provider (e.g., "elevenlabs").
	Name string

	// Priority orders providers; lower is preferred. Ties are broken by
	// registration order.
	Priority int

	// Enabled marks the provider as eligible. Disabled providers (e.g., absent
	// credentials) are never selected and never probed.
	Enabled bool

	// Client is the capability-bound handle used to perform the actual call.
	Client T

	// Probe is an optional lightweight availability check used by the health
	// monitor loop. Providers without a cheap status endpoint should issue a
	// minimal real call here. A nil Probe means the provider can only recover
	// through live traffic.
	Probe func(ctx context.Context) error
}

// Settings holds the tuning knobs of an [Orchestrator]. Zero-value fields are
// replaced with defaults by [New].
type Settings struct {
	// ErrorThreshold is the number of consecutive failures before a provider is
	// marked unhealthy. Default: 3.
	ErrorThreshold int

	// MaxAttempts caps the number of providers tried within a single Execute
	// call. The effective limit is min(MaxAttempts, registration count).
	// Default: the registration count.
	MaxAttempts int

	// FailoverDelay is the minimum dwell time after a health transition before
	// an unhealthy provider may be optimistically retried when no healthy
	// alternative exists. Default: 30s.
	FailoverDelay time.Duration

	// HealthCheckInterval is the period of the background probe loop.
	// Default: 30s.
	HealthCheckInterval time.Duration

	// ProbeTimeout bounds a single health probe. Default: 5s.
	ProbeTimeout time.Duration

	// CallTimeout bounds a single provider call inside Execute. Zero means the
	// caller's context alone governs the deadline. A call that exceeds this
	// timeout counts as a failure for health tracking.
	CallTimeout time.Duration

	// HistorySize bounds the in-memory event history ring. Default: 64.
	HistorySize int
}

// withDefaults returns a copy of s with zero fields replaced.
func (s Settings) withDefaults(registrations int) Settings {
	if s.ErrorThreshold <= 0 {
		s.ErrorThreshold = 3
	}
	if s.MaxAttempts <= 0 || s.MaxAttempts > registrations {
		s.MaxAttempts = registrations
	}
	if s.FailoverDelay <= 0 {
		s.FailoverDelay = 30 * time.Second
	}
	if s.HealthCheckInterval <= 0 {
		s.HealthCheckInterval = 30 * time.Second
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = 5 * time.Second
	}
	if s.HistorySize <= 0 {
		s.HistorySize = 64
	}
	return s
}

// Orchestrator owns a priority-ordered provider set for one capability and
// executes calls against the healthiest member with transparent failover.
//
// An Orchestrator is created with [New], reconfigured atomically with
// [Orchestrator.UpdateConfig], and torn down with [Orchestrator.Close].
type Orchestrator[T any] struct {
	label string

	mu       sync.RWMutex // guards regs and settings
	regs     []Registration[T]
	settings Settings

	tracker *Tracker
	hub     *Hub

	activeMu   sync.Mutex
	activeName string // cached for reporting only; selection is re-derived per call

	monitorMu     sync.Mutex
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
	closed        bool
}

// Option configures an [Orchestrator].
type Option[T any] func(*Orchestrator[T])

// WithLabel sets a human-readable capability label ("tts", "stt", "llm") used
// in log lines.
func WithLabel[T any](label string) Option[T] {
	return func(o *Orchestrator[T]) {
		o.label = label
	}
}

// New creates an [Orchestrator] from the given registrations and settings and
// starts its health monitor loop. It returns [ErrNoProviders] when the
// registration set is empty or contains no enabled provider, and an error on
// duplicate names.
func New[T any](regs []Registration[T], settings Settings, opts ...Option[T]) (*Orchestrator[T], error) {
	if err := validate(regs); err != nil {
		return nil, err
	}

	sorted := make([]Registration[T], len(regs))
	copy(sorted, regs)
	slices.SortStableFunc(sorted, func(a, b Registration[T]) int {
		return a.Priority - b.Priority
	})

	settings = settings.withDefaults(len(sorted))

	o := &Orchestrator[T]{
		label:    "provider",
		regs:     sorted,
		settings: settings,
		hub:      newHub(settings.HistorySize),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.tracker = newTracker(settings.ErrorThreshold, o.hub, enabledNames(sorted))

	o.startMonitor(settings.HealthCheckInterval)
	return o, nil
}

// validate checks the registration set for emptiness and duplicate names.
func validate[T any](regs []Registration[T]) error {
	seen := make(map[string]bool, len(regs))
	enabled := 0
	for _, reg := range regs {
		if reg.Name == "" {
			return errors.New("failover: registration with empty name")
		}
		if seen[reg.Name] {
			return fmt.Errorf("failover: duplicate provider name %q", reg.Name)
		}
		seen[reg.Name] = true
		if reg.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoProviders
	}
	return nil
}

// enabledNames returns the names of all enabled registrations.
func enabledNames[T any](regs []Registration[T]) []string {
	names := make([]string, 0, len(regs))
	for _, reg := range regs {
		if reg.Enabled {
			names = append(names, reg.Name)
		}
	}
	return names
}

// Execute runs fn against the currently selected provider, failing over to the
// next eligible provider on error. It retries at most
// min(registrations, MaxAttempts) distinct providers and returns an
// [*ExhaustedError] when every attempt failed.
//
// Cancellation of ctx is terminal: the call is not retried and the provider's
// health counters are left untouched.
func (o *Orchestrator[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, o, func(ctx context.Context, client T) (struct{}, error) {
		return struct{}{}, fn(ctx, client)
	})
	return err
}

// ExecuteWithResult is the result-returning variant of [Orchestrator.Execute].
// It is a package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, o *Orchestrator[T], fn func(context.Context, T) (R, error)) (R, error) {
	var zero R

	o.mu.RLock()
	regs := o.regs
	settings := o.settings
	o.mu.RUnlock()

	maxAttempts := min(len(regs), settings.MaxAttempts)
	attempted := make(map[string]bool, maxAttempts)
	attempts := make([]Attempt, 0, maxAttempts)

	for len(attempts) < maxAttempts {
		reg, ok := o.selectProvider(regs, settings, attempted)
		if !ok {
			break
		}
		reason := reasonSelection
		if len(attempts) > 0 {
			reason = reasonFailover
		}
		o.noteActive(reg.Name, reason)

		callCtx := ctx
		cancel := func() {}
		if settings.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, settings.CallTimeout)
		}
		result, err := fn(callCtx, reg.Client)
		cancel()

		if err == nil {
			o.tracker.RecordSuccess(reg.Name)
			return result, nil
		}
		if ctx.Err() != nil {
			// The caller gave up; not a provider fault and not recoverable.
			return zero, ctx.Err()
		}

		o.tracker.RecordFailure(reg.Name, err)
		slog.Warn("provider call failed, trying next",
			"capability", o.label,
			"provider", reg.Name,
			"error", err,
		)
		attempted[reg.Name] = true
		attempts = append(attempts, Attempt{Provider: reg.Name, Err: err})
	}

	return zero, &ExhaustedError{Attempts: attempts}
}

// selectProvider re-derives the best eligible provider from priority order and
// live health state, excluding names in attempted. Selection is pure: it reads
// health snapshots and never blocks on I/O.
//
// When no healthy provider remains, the first unhealthy provider (in priority
// order) whose last transition is older than FailoverDelay is returned as an
// optimistic retry; refusing it would guarantee a total outage.
func (o *Orchestrator[T]) selectProvider(regs []Registration[T], settings Settings, attempted map[string]bool) (Registration[T], bool) {
	var (
		zero    Registration[T]
		stale   Registration[T]
		staleOK bool
	)
	now := time.Now()
	for _, reg := range regs {
		if !reg.Enabled || attempted[reg.Name] {
			continue
		}
		st, ok := o.tracker.Status(reg.Name)
		if !ok {
			continue
		}
		if st.Healthy {
			return reg, true
		}
		if !staleOK && now.Sub(st.LastTransition) >= settings.FailoverDelay {
			stale = reg
			staleOK = true
		}
	}
	if staleOK {
		slog.Info("no healthy provider available, optimistically retrying",
			"capability", o.label,
			"provider", stale.Name,
		)
		return stale, true
	}
	return zero, false
}

// Switch reasons recorded on switched events.
const (
	reasonSelection = "selection"
	reasonFailover  = "failover"
)

// noteActive updates the cached active provider name and emits a switched
// event when it changed. The cache exists purely for reporting; selection
// never reads it.
func (o *Orchestrator[T]) noteActive(name, reason string) {
	o.activeMu.Lock()
	previous := o.activeName
	if previous == name {
		o.activeMu.Unlock()
		return
	}
	o.activeName = name
	o.activeMu.Unlock()

	slog.Info("active provider switched",
		"capability", o.label,
		"from", previous,
		"to", name,
		"reason", reason,
	)
	o.hub.publish(Event{
		Type:   EventSwitched,
		Time:   time.Now(),
		From:   previous,
		To:     name,
		Reason: reason,
	})
}

// UpdateConfig atomically replaces the registration set and settings. Health
// records of providers that remain registered are preserved; removed providers
// are forgotten and new ones start healthy. The monitor loop is restarted when
// the health check interval changed.
func (o *Orchestrator[T]) UpdateConfig(regs []Registration[T], settings Settings) error {
	if err := validate(regs); err != nil {
		return err
	}

	sorted := make([]Registration[T], len(regs))
	copy(sorted, regs)
	slices.SortStableFunc(sorted, func(a, b Registration[T]) int {
		return a.Priority - b.Priority
	})
	settings = settings.withDefaults(len(sorted))

	o.mu.Lock()
	oldInterval := o.settings.HealthCheckInterval
	o.regs = sorted
	o.settings = settings
	o.mu.Unlock()

	o.tracker.resync(settings.ErrorThreshold, enabledNames(sorted))

	if settings.HealthCheckInterval != oldInterval {
		o.stopMonitor()
		o.startMonitor(settings.HealthCheckInterval)
	}

	slog.Info("orchestrator reconfigured",
		"capability", o.label,
		"providers", len(sorted),
		"health_check_interval", settings.HealthCheckInterval,
	)
	return nil
}

// Subscribe registers an event listener. See [Hub.Subscribe].
func (o *Orchestrator[T]) Subscribe(buffer int) (<-chan Event, func()) {
	return o.hub.Subscribe(buffer)
}

// History returns a copy of the bounded event history, oldest first.
func (o *Orchestrator[T]) History() []Event {
	return o.hub.History()
}

// Ready reports whether the orchestrator can serve traffic at all. It returns
// [ErrNoProviders] when no enabled provider is registered; an unhealthy-but-
// configured set is still considered ready because optimistic retry may
// succeed.
func (o *Orchestrator[T]) Ready(context.Context) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, reg := range o.regs {
		if reg.Enabled {
			return nil
		}
	}
	return ErrNoProviders
}

// Close stops the health monitor loop. Further Execute calls still work but no
// probes run, so unhealthy providers can only recover through live traffic.
func (o *Orchestrator[T]) Close() {
	o.monitorMu.Lock()
	if o.closed {
		o.monitorMu.Unlock()
		return
	}
	o.closed = true
	o.monitorMu.Unlock()
	o.stopMonitor()
}
