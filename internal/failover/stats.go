package failover

// ProviderStatus is one row of a [Stats] snapshot.
type ProviderStatus struct {
	Name              string `json:"name"`
	Priority          int    `json:"priority"`
	Enabled           bool   `json:"enabled"`
	Healthy           bool   `json:"healthy"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
}

// Stats is a read-only snapshot of orchestrator state, safe to request
// concurrently with everything else.
type Stats struct {
	ActiveProvider   string           `json:"active_provider"`
	HealthyProviders int              `json:"healthy_providers"`
	Providers        []ProviderStatus `json:"providers"`
}

// Stats returns the current orchestrator snapshot. Disabled providers are
// included in the listing (marked unhealthy) so that operators can see the
// full configured set.
func (o *Orchestrator[T]) Stats() Stats {
	o.mu.RLock()
	regs := o.regs
	o.mu.RUnlock()

	o.activeMu.Lock()
	active := o.activeName
	o.activeMu.Unlock()

	s := Stats{
		ActiveProvider: active,
		Providers:      make([]ProviderStatus, 0, len(regs)),
	}
	for _, reg := range regs {
		row := ProviderStatus{
			Name:     reg.Name,
			Priority: reg.Priority,
			Enabled:  reg.Enabled,
		}
		if st, ok := o.tracker.Status(reg.Name); ok {
			row.Healthy = st.Healthy
			row.ConsecutiveErrors = st.ConsecutiveErrors
		}
		if reg.Enabled && row.Healthy {
			s.HealthyProviders++
		}
		s.Providers = append(s.Providers, row)
	}
	return s
}
