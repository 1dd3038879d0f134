package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/vocalis-ai/vocalis/internal/failover"
)

// EventRecorder translates orchestrator events into metric updates: switched
// events increment the failover-switch counter and health transitions move the
// healthy-provider gauge. It drains subscriptions the same way the audit
// recorder does, so a slow metrics pipeline can never stall a transition.
type EventRecorder struct {
	metrics *Metrics

	mu      sync.Mutex
	cancels []func()
	wg      sync.WaitGroup
}

// NewEventRecorder creates an EventRecorder writing to m.
func NewEventRecorder(m *Metrics) *EventRecorder {
	return &EventRecorder{metrics: m}
}

// Watch consumes events under the given capability label until Stop is called.
func (r *EventRecorder) Watch(capability string, events <-chan failover.Event, cancel func()) {
	r.mu.Lock()
	r.cancels = append(r.cancels, cancel)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := context.Background()
		capAttr := metric.WithAttributes(Attr("capability", capability))
		for ev := range events {
			switch ev.Type {
			case failover.EventSwitched:
				r.metrics.RecordFailoverSwitch(ctx, capability, ev.From, ev.To)
			case failover.EventUnhealthy:
				r.metrics.HealthyProviders.Add(ctx, -1, capAttr)
			case failover.EventRecovered:
				r.metrics.HealthyProviders.Add(ctx, 1, capAttr)
			}
		}
	}()
}

// Stop cancels all subscriptions and waits for the drain goroutines to exit.
func (r *EventRecorder) Stop() {
	r.mu.Lock()
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
}
