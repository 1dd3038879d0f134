package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vocalis-ai/vocalis/internal/failover"
)

// saveTimeout bounds a single event insert so a stalled database cannot back
// up the event channel.
const saveTimeout = 5 * time.Second

// Sink is the subset of [Store] the recorder needs. It exists so tests can
// substitute an in-memory implementation.
type Sink interface {
	Save(ctx context.Context, capability string, ev failover.Event) error
}

// Recorder drains failover event subscriptions into a [Sink]. Persistence is
// best-effort: a failed insert is logged and dropped, never retried, so the
// audit trail can lag but cannot slow down failover itself.
type Recorder struct {
	sink Sink

	mu      sync.Mutex
	cancels []func()
	wg      sync.WaitGroup
}

// NewRecorder creates a Recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Watch subscribes to events under the given capability label and persists
// them until Stop is called. The subscription buffer absorbs bursts; events
// beyond it are dropped by the emitter.
func (r *Recorder) Watch(capability string, events <-chan failover.Event, cancel func()) {
	r.mu.Lock()
	r.cancels = append(r.cancels, cancel)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ev := range events {
			ctx, cancelSave := context.WithTimeout(context.Background(), saveTimeout)
			err := r.sink.Save(ctx, capability, ev)
			cancelSave()
			if err != nil {
				slog.Warn("audit: failed to persist failover event",
					"capability", capability,
					"type", ev.Type,
					"err", err,
				)
			}
		}
	}()
}

// Stop cancels all subscriptions and waits for in-flight inserts to finish.
func (r *Recorder) Stop() {
	r.mu.Lock()
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
}
