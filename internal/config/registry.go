package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocalis-ai/vocalis/internal/failover"
	"github.com/vocalis-ai/vocalis/pkg/provider/llm"
	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// capability. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	tts map[string]func(ProviderEntry) (tts.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	llm map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterTTS registers a TTS provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// TTSRegistrations builds priority-ordered failover registrations for the
// given TTS provider chain. Each enabled provider is constructed through the
// registry and its Probe method wired as the health check. Disabled entries
// are registered without a client: they often carry no credentials, and the
// orchestrator never selects or probes them.
func (r *Registry) TTSRegistrations(entries []ProviderEntry) ([]failover.Registration[tts.Provider], error) {
	regs := make([]failover.Registration[tts.Provider], 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			regs = append(regs, failover.Registration[tts.Provider]{
				Name:     e.Name,
				Priority: e.Priority,
			})
			continue
		}
		p, err := r.CreateTTS(e)
		if err != nil {
			return nil, err
		}
		regs = append(regs, failover.Registration[tts.Provider]{
			Name:     e.Name,
			Priority: e.Priority,
			Enabled:  e.IsEnabled(),
			Client:   p,
			Probe:    p.Probe,
		})
	}
	return regs, nil
}

// STTRegistrations builds priority-ordered failover registrations for the
// given STT provider chain.
func (r *Registry) STTRegistrations(entries []ProviderEntry) ([]failover.Registration[stt.Provider], error) {
	regs := make([]failover.Registration[stt.Provider], 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			regs = append(regs, failover.Registration[stt.Provider]{
				Name:     e.Name,
				Priority: e.Priority,
			})
			continue
		}
		p, err := r.CreateSTT(e)
		if err != nil {
			return nil, err
		}
		regs = append(regs, failover.Registration[stt.Provider]{
			Name:     e.Name,
			Priority: e.Priority,
			Enabled:  e.IsEnabled(),
			Client:   p,
			Probe:    p.Probe,
		})
	}
	return regs, nil
}

// LLMRegistrations builds priority-ordered failover registrations for the
// given LLM provider chain.
func (r *Registry) LLMRegistrations(entries []ProviderEntry) ([]failover.Registration[llm.Provider], error) {
	regs := make([]failover.Registration[llm.Provider], 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			regs = append(regs, failover.Registration[llm.Provider]{
				Name:     e.Name,
				Priority: e.Priority,
			})
			continue
		}
		p, err := r.CreateLLM(e)
		if err != nil {
			return nil, err
		}
		regs = append(regs, failover.Registration[llm.Provider]{
			Name:     e.Name,
			Priority: e.Priority,
			Enabled:  e.IsEnabled(),
			Client:   p,
			Probe:    p.Probe,
		})
	}
	return regs, nil
}
