package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// testSettings returns fast-cycling settings so tests never wait on the
// production defaults.
func testSettings() Settings {
	return Settings{
		ErrorThreshold:      3,
		FailoverDelay:       50 * time.Millisecond,
		HealthCheckInterval: 20 * time.Millisecond,
		ProbeTimeout:        time.Second,
	}
}

// reg builds an enabled registration whose client is just its name.
func reg(name string, priority int) Registration[string] {
	return Registration[string]{Name: name, Priority: priority, Enabled: true, Client: name}
}

// tripProvider drives the named provider over the error threshold.
func tripProvider(t *testing.T, o *Orchestrator[string], name string, threshold int) {
	t.Helper()
	for range threshold {
		o.tracker.RecordFailure(name, errors.New("boom"))
	}
	if o.tracker.IsHealthy(name) {
		t.Fatalf("provider %q still healthy after %d failures", name, threshold)
	}
}

// ── construction ─────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	t.Run("empty registration set", func(t *testing.T) {
		t.Parallel()
		_, err := New[string](nil, testSettings())
		if !errors.Is(err, ErrNoProviders) {
			t.Fatalf("want ErrNoProviders, got %v", err)
		}
	})

	t.Run("all providers disabled", func(t *testing.T) {
		t.Parallel()
		regs := []Registration[string]{
			{Name: "primary", Priority: 1, Client: "primary"},
		}
		_, err := New(regs, testSettings())
		if !errors.Is(err, ErrNoProviders) {
			t.Fatalf("want ErrNoProviders, got %v", err)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		t.Parallel()
		regs := []Registration[string]{reg("primary", 1), reg("primary", 2)}
		_, err := New(regs, testSettings())
		if err == nil {
			t.Fatal("want duplicate-name error, got nil")
		}
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		regs := []Registration[string]{reg("", 1)}
		_, err := New(regs, testSettings())
		if err == nil {
			t.Fatal("want empty-name error, got nil")
		}
	})
}

func TestSettings_Defaults(t *testing.T) {
	t.Parallel()

	s := Settings{}.withDefaults(5)
	if s.ErrorThreshold != 3 {
		t.Errorf("ErrorThreshold: got %d, want 3", s.ErrorThreshold)
	}
	if s.MaxAttempts != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", s.MaxAttempts)
	}
	if s.FailoverDelay != 30*time.Second {
		t.Errorf("FailoverDelay: got %v, want 30s", s.FailoverDelay)
	}
	if s.HistorySize != 64 {
		t.Errorf("HistorySize: got %d, want 64", s.HistorySize)
	}

	// A MaxAttempts above the registration count is clamped.
	s = Settings{MaxAttempts: 10}.withDefaults(2)
	if s.MaxAttempts != 2 {
		t.Errorf("clamped MaxAttempts: got %d, want 2", s.MaxAttempts)
	}
}

// ── selection and execution ──────────────────────────────────────────────────

func TestExecute_PrefersLowestPriority(t *testing.T) {
	t.Parallel()

	// Registered out of order on purpose; New sorts by priority.
	regs := []Registration[string]{reg("backup", 2), reg("primary", 1)}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "primary" {
		t.Errorf("want primary, got %q", used)
	}
}

func TestExecute_SkipsDisabledProviders(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{
		{Name: "primary", Priority: 1, Client: "primary"}, // disabled
		reg("backup", 2),
	}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "backup" {
		t.Errorf("want backup, got %q", used)
	}
}

func TestExecute_FailsOverWithinOneCall(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	var tried []string
	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		tried = append(tried, client)
		if client == "primary" {
			return "", errors.New("upstream 500")
		}
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "backup" {
		t.Errorf("want backup, got %q", used)
	}
	if len(tried) != 2 || tried[0] != "primary" || tried[1] != "backup" {
		t.Errorf("attempt order: got %v, want [primary backup]", tried)
	}

	// One failed attempt must not trip the threshold on its own.
	if !o.tracker.IsHealthy("primary") {
		t.Error("primary should still be healthy after a single failure")
	}
	st, _ := o.tracker.Status("primary")
	if st.ConsecutiveErrors != 1 {
		t.Errorf("primary consecutive errors: got %d, want 1", st.ConsecutiveErrors)
	}
}

func TestExecute_Exhaustion(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	_, err = ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return "", fmt.Errorf("%s is down", client)
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("want *ExhaustedError, got %T", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("attempts: got %d, want 2", len(exhausted.Attempts))
	}
	if exhausted.Attempts[0].Provider != "primary" || exhausted.Attempts[1].Provider != "backup" {
		t.Errorf("attempt order: got %+v", exhausted.Attempts)
	}
	if got := exhausted.Unwrap(); got == nil || got.Error() != "backup is down" {
		t.Errorf("Unwrap: got %v, want last attempt cause", got)
	}
}

func TestExecute_MaxAttemptsCapsProviders(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("a", 1), reg("b", 2), reg("c", 3)}
	settings := testSettings()
	settings.MaxAttempts = 2
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	calls := 0
	_, err = ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		calls++
		return "", errors.New("down")
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestExecute_CancellationIsTerminal(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err = ExecuteWithResult(ctx, o, func(_ context.Context, client string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (no retry after cancellation)", calls)
	}

	// Cancellation is not a provider fault.
	st, _ := o.tracker.Status("primary")
	if st.ConsecutiveErrors != 0 {
		t.Errorf("primary consecutive errors: got %d, want 0", st.ConsecutiveErrors)
	}
}

func TestExecute_CallTimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("slow", 1), reg("fast", 2)}
	settings := testSettings()
	settings.CallTimeout = 20 * time.Millisecond
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	used, err := ExecuteWithResult(context.Background(), o, func(ctx context.Context, client string) (string, error) {
		if client == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "fast" {
		t.Errorf("want fast, got %q", used)
	}
	st, _ := o.tracker.Status("slow")
	if st.ConsecutiveErrors != 1 {
		t.Errorf("slow consecutive errors: got %d, want 1", st.ConsecutiveErrors)
	}
}

func TestExecute_SkipsUnhealthyProvider(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	settings := testSettings()
	settings.FailoverDelay = time.Hour // no optimistic retry in this test
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	tripProvider(t, o, "primary", settings.ErrorThreshold)

	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		if client == "primary" {
			t.Error("unhealthy primary must not be selected while backup is healthy")
		}
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "backup" {
		t.Errorf("want backup, got %q", used)
	}
}

func TestExecute_OptimisticRetryAfterDelay(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1)}
	settings := testSettings()
	settings.FailoverDelay = 30 * time.Millisecond
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	tripProvider(t, o, "primary", settings.ErrorThreshold)

	// Inside the dwell window nothing is eligible.
	_, err = ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		t.Errorf("provider %q selected inside the failover delay window", client)
		return "", errors.New("unreachable")
	})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || len(exhausted.Attempts) != 0 {
		t.Fatalf("want empty ExhaustedError inside dwell window, got %v", err)
	}

	// After the dwell time the unhealthy provider is retried, and a success
	// flips it back to healthy.
	time.Sleep(settings.FailoverDelay + 20*time.Millisecond)
	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "primary" {
		t.Errorf("want primary, got %q", used)
	}
	if !o.tracker.IsHealthy("primary") {
		t.Error("primary should be healthy again after a successful optimistic retry")
	}
}

// ── health tracking ──────────────────────────────────────────────────────────

func TestTracker_ThresholdHysteresis(t *testing.T) {
	t.Parallel()

	hub := newHub(16)
	tr := newTracker(3, hub, []string{"primary"})

	tr.RecordFailure("primary", errors.New("e1"))
	tr.RecordFailure("primary", errors.New("e2"))
	if !tr.IsHealthy("primary") {
		t.Fatal("two failures must not trip a threshold of three")
	}

	tr.RecordFailure("primary", errors.New("e3"))
	if tr.IsHealthy("primary") {
		t.Fatal("third consecutive failure should trip the threshold")
	}

	// Extra failures keep counting but emit no duplicate transition.
	tr.RecordFailure("primary", errors.New("e4"))
	st, _ := tr.Status("primary")
	if st.ConsecutiveErrors != 4 {
		t.Errorf("consecutive errors: got %d, want 4", st.ConsecutiveErrors)
	}

	tr.RecordSuccess("primary")
	if !tr.IsHealthy("primary") {
		t.Fatal("success should flip the provider back to healthy")
	}
	st, _ = tr.Status("primary")
	if st.ConsecutiveErrors != 0 {
		t.Errorf("consecutive errors after recovery: got %d, want 0", st.ConsecutiveErrors)
	}

	events := hub.History()
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2 (unhealthy + recovered)", len(events))
	}
	if events[0].Type != EventUnhealthy || events[0].Provider != "primary" || events[0].Err != "e3" {
		t.Errorf("unhealthy event: got %+v", events[0])
	}
	if events[1].Type != EventRecovered || events[1].Provider != "primary" {
		t.Errorf("recovered event: got %+v", events[1])
	}
}

func TestTracker_ConcurrentTransitionsStayOrdered(t *testing.T) {
	t.Parallel()

	hub := newHub(1024)
	tr := newTracker(1, hub, []string{"primary"})

	// Hammer the same provider from both directions. Whatever interleaving
	// the scheduler picks, the published history for one provider must
	// strictly alternate unhealthy/recovered.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				tr.RecordFailure("primary", errors.New("boom"))
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				tr.RecordSuccess("primary")
			}
		}()
	}
	wg.Wait()

	var prev EventType
	for i, ev := range hub.History() {
		if ev.Provider != "primary" {
			continue
		}
		if ev.Type == prev {
			t.Fatalf("event %d: consecutive %q transitions for one provider", i, ev.Type)
		}
		prev = ev.Type
	}
}

func TestTracker_SuccessResetsCounterMidStreak(t *testing.T) {
	t.Parallel()

	tr := newTracker(3, newHub(16), []string{"primary"})
	tr.RecordFailure("primary", errors.New("e1"))
	tr.RecordFailure("primary", errors.New("e2"))
	tr.RecordSuccess("primary")
	tr.RecordFailure("primary", errors.New("e3"))
	tr.RecordFailure("primary", errors.New("e4"))

	// Non-consecutive failures never add up to a trip.
	if !tr.IsHealthy("primary") {
		t.Fatal("interleaved success should have reset the streak")
	}
}

func TestTracker_UnknownProviderIgnored(t *testing.T) {
	t.Parallel()

	tr := newTracker(3, newHub(16), []string{"primary"})
	tr.RecordFailure("ghost", errors.New("boom"))
	tr.RecordSuccess("ghost")
	if tr.IsHealthy("ghost") {
		t.Error("unknown provider must report unhealthy")
	}
	if _, ok := tr.Status("ghost"); ok {
		t.Error("unknown provider must have no status")
	}
}

// ── health monitor ───────────────────────────────────────────────────────────

func TestMonitor_ProbeRecoversUnhealthyProvider(t *testing.T) {
	t.Parallel()

	probeOK := make(chan struct{})
	regs := []Registration[string]{
		{
			Name: "primary", Priority: 1, Enabled: true, Client: "primary",
			Probe: func(context.Context) error {
				select {
				case <-probeOK:
					return nil
				default:
					return errors.New("still down")
				}
			},
		},
	}
	settings := testSettings()
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	tripProvider(t, o, "primary", settings.ErrorThreshold)

	// Failing probes leave the provider unhealthy.
	time.Sleep(3 * settings.HealthCheckInterval)
	if o.tracker.IsHealthy("primary") {
		t.Fatal("provider recovered while its probe was still failing")
	}

	close(probeOK)
	deadline := time.Now().Add(2 * time.Second)
	for !o.tracker.IsHealthy("primary") {
		if time.Now().After(deadline) {
			t.Fatal("provider did not recover after its probe started succeeding")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMonitor_RestartsOnIntervalChange(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{
		{
			Name: "primary", Priority: 1, Enabled: true, Client: "primary",
			Probe: func(context.Context) error { return nil },
		},
	}
	settings := testSettings()
	settings.HealthCheckInterval = time.Hour
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	// With an hour between sweeps the tripped provider stays down.
	tripProvider(t, o, "primary", settings.ErrorThreshold)
	time.Sleep(50 * time.Millisecond)
	if o.tracker.IsHealthy("primary") {
		t.Fatal("provider recovered before any monitor sweep was due")
	}

	// Shrinking the interval must restart the loop on the new cadence.
	settings.HealthCheckInterval = 20 * time.Millisecond
	if err := o.UpdateConfig(regs, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !o.tracker.IsHealthy("primary") {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not pick up the shortened health check interval")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMonitor_HealthyProvidersNotProbed(t *testing.T) {
	t.Parallel()

	var probes int
	regs := []Registration[string]{
		{
			Name: "primary", Priority: 1, Enabled: true, Client: "primary",
			Probe: func(context.Context) error {
				probes++
				return nil
			},
		},
	}
	settings := testSettings()
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(4 * settings.HealthCheckInterval)
	o.Close()

	if probes != 0 {
		t.Errorf("healthy provider was probed %d times; live traffic should validate it", probes)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	o, err := New([]Registration[string]{reg("primary", 1)}, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Close()
	o.Close()

	// Execute still works without the monitor.
	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil || used != "primary" {
		t.Errorf("Execute after Close: got (%q, %v), want (primary, nil)", used, err)
	}
}

// ── reconfiguration ──────────────────────────────────────────────────────────

func TestUpdateConfig_PreservesSurvivingHealthState(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	settings := testSettings()
	settings.FailoverDelay = time.Hour
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	tripProvider(t, o, "primary", settings.ErrorThreshold)

	// Replace backup with a new provider; primary persists.
	next := []Registration[string]{reg("primary", 1), reg("standby", 2)}
	if err := o.UpdateConfig(next, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.tracker.IsHealthy("primary") {
		t.Error("primary health state should survive reconfiguration")
	}
	if !o.tracker.IsHealthy("standby") {
		t.Error("newly registered provider should start healthy")
	}
	if _, ok := o.tracker.Status("backup"); ok {
		t.Error("removed provider should be forgotten")
	}

	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "standby" {
		t.Errorf("want standby (primary unhealthy), got %q", used)
	}
}

func TestUpdateConfig_RejectsInvalidSet(t *testing.T) {
	t.Parallel()

	o, err := New([]Registration[string]{reg("primary", 1)}, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	if err := o.UpdateConfig(nil, testSettings()); !errors.Is(err, ErrNoProviders) {
		t.Errorf("empty set: want ErrNoProviders, got %v", err)
	}

	dup := []Registration[string]{reg("a", 1), reg("a", 2)}
	if err := o.UpdateConfig(dup, testSettings()); err == nil {
		t.Error("duplicate set: want error, got nil")
	}

	// The failed updates must not have clobbered the working set.
	used, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	})
	if err != nil || used != "primary" {
		t.Errorf("Execute after rejected update: got (%q, %v), want (primary, nil)", used, err)
	}
}

// ── readiness and stats ──────────────────────────────────────────────────────

func TestReady(t *testing.T) {
	t.Parallel()

	o, err := New([]Registration[string]{reg("primary", 1)}, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	if err := o.Ready(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Unhealthy but configured is still ready; optimistic retry may succeed.
	tripProvider(t, o, "primary", 3)
	if err := o.Ready(context.Background()); err != nil {
		t.Errorf("unhealthy set should still be ready, got %v", err)
	}
}

func TestStats_Snapshot(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{
		reg("primary", 1),
		reg("backup", 2),
		{Name: "spare", Priority: 3, Client: "spare"}, // disabled
	}
	settings := testSettings()
	settings.FailoverDelay = time.Hour
	o, err := New(regs, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	tripProvider(t, o, "primary", settings.ErrorThreshold)
	if _, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		return client, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := o.Stats()
	if s.ActiveProvider != "backup" {
		t.Errorf("active provider: got %q, want backup", s.ActiveProvider)
	}
	if s.HealthyProviders != 1 {
		t.Errorf("healthy providers: got %d, want 1", s.HealthyProviders)
	}
	if len(s.Providers) != 3 {
		t.Fatalf("provider rows: got %d, want 3", len(s.Providers))
	}
	if s.Providers[0].Name != "primary" || s.Providers[0].Healthy {
		t.Errorf("primary row: got %+v", s.Providers[0])
	}
	if !s.Providers[1].Healthy {
		t.Errorf("backup row: got %+v", s.Providers[1])
	}
	if s.Providers[2].Enabled {
		t.Errorf("spare row should be disabled: got %+v", s.Providers[2])
	}
}

// ── events ───────────────────────────────────────────────────────────────────

func TestHub_SubscribeAndCancel(t *testing.T) {
	t.Parallel()

	hub := newHub(16)
	ch, cancel := hub.Subscribe(4)

	hub.publish(Event{Type: EventUnhealthy, Provider: "primary"})
	select {
	case ev := <-ch:
		if ev.Type != EventUnhealthy || ev.Provider != "primary" {
			t.Errorf("event: got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	cancel() // safe to call twice
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	hub.publish(Event{Type: EventRecovered, Provider: "primary"})
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	t.Parallel()

	hub := newHub(16)
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.publish(Event{Type: EventUnhealthy, Provider: "a"})
	hub.publish(Event{Type: EventUnhealthy, Provider: "b"}) // buffer full, dropped

	ev := <-ch
	if ev.Provider != "a" {
		t.Errorf("first event: got %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event: %+v", ev)
	default:
	}

	// History keeps both regardless of subscriber backpressure.
	if got := len(hub.History()); got != 2 {
		t.Errorf("history length: got %d, want 2", got)
	}
}

func TestHub_HistoryRingEvictsOldest(t *testing.T) {
	t.Parallel()

	hub := newHub(3)
	for i := range 5 {
		hub.publish(Event{Type: EventSwitched, To: fmt.Sprintf("p%d", i)})
	}

	events := hub.History()
	if len(events) != 3 {
		t.Fatalf("history length: got %d, want 3", len(events))
	}
	for i, want := range []string{"p2", "p3", "p4"} {
		if events[i].To != want {
			t.Errorf("history[%d].To: got %q, want %q", i, events[i].To, want)
		}
	}
}

func TestOrchestrator_SwitchEvents(t *testing.T) {
	t.Parallel()

	regs := []Registration[string]{reg("primary", 1), reg("backup", 2)}
	o, err := New(regs, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	ch, cancel := o.Subscribe(8)
	defer cancel()

	_, err = ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		if client == "primary" {
			return "", errors.New("down")
		}
		return client, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First selection of primary, then the failover switch to backup.
	first := <-ch
	if first.Type != EventSwitched || first.To != "primary" || first.Reason != "selection" {
		t.Errorf("first event: got %+v", first)
	}
	second := <-ch
	if second.Type != EventSwitched || second.From != "primary" || second.To != "backup" || second.Reason != "failover" {
		t.Errorf("second event: got %+v", second)
	}

	// A repeat call on the same provider emits no duplicate switch.
	if _, err := ExecuteWithResult(context.Background(), o, func(_ context.Context, client string) (string, error) {
		if client == "primary" {
			return "", errors.New("down")
		}
		return client, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := <-ch
	if ev.Type != EventSwitched || ev.To != "primary" {
		t.Errorf("re-selection event: got %+v", ev)
	}
	ev = <-ch
	if ev.To != "backup" {
		t.Errorf("re-failover event: got %+v", ev)
	}
}
