package failover

import (
	"context"
	"log/slog"
	"time"
)

// startMonitor launches the background health monitor goroutine. No-op after
// Close.
func (o *Orchestrator[T]) startMonitor(interval time.Duration) {
	o.monitorMu.Lock()
	defer o.monitorMu.Unlock()
	if o.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.monitorCancel = cancel
	o.monitorDone = done

	go func() {
		defer close(done)
		o.runMonitor(ctx, interval)
	}()
}

// stopMonitor cancels the monitor goroutine and waits for it to exit.
func (o *Orchestrator[T]) stopMonitor() {
	o.monitorMu.Lock()
	cancel := o.monitorCancel
	done := o.monitorDone
	o.monitorCancel = nil
	o.monitorDone = nil
	o.monitorMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// runMonitor probes unhealthy providers on a fixed interval until ctx is
// cancelled. Healthy providers are never probed; live traffic validates them
// continuously.
func (o *Orchestrator[T]) runMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.probeUnhealthy(ctx)
		}
	}
}

// probeUnhealthy issues one probe round. Probe failures change no state (the
// provider is already unhealthy) and are logged for operational visibility
// only. No lock is held across a probe call.
func (o *Orchestrator[T]) probeUnhealthy(ctx context.Context) {
	o.mu.RLock()
	regs := o.regs
	timeout := o.settings.ProbeTimeout
	o.mu.RUnlock()

	for _, reg := range regs {
		if !reg.Enabled {
			continue
		}
		st, ok := o.tracker.Status(reg.Name)
		if !ok || st.Healthy {
			continue
		}
		if reg.Probe == nil {
			slog.Debug("unhealthy provider has no probe, awaiting live traffic",
				"capability", o.label,
				"provider", reg.Name,
			)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		err := reg.Probe(probeCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Debug("health probe failed",
				"capability", o.label,
				"provider", reg.Name,
				"error", err,
			)
			continue
		}
		o.tracker.RecordSuccess(reg.Name)
	}
}
