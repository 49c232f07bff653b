package llm

import (
	"errors"
	"fmt"
	"time"

	"go-llmlab/internal/config"
	"go-llmlab/internal/tools"
)

var ErrUnknownBackend = errors.New("unknown backend")

// NewBackend builds the adapter for one configured backend. manager is only
// needed by the "local" provider.
func NewBackend(cfg config.BackendConfig, manager *Manager) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIBackend(cfg.Name, cfg.Model, cfg.APIKey(), cfg.URL, cfg.MaxTokens, timeout), nil
	case "ollama":
		return NewOllamaBackend(cfg.Name, cfg.Model, cfg.URL, cfg.MaxTokens, timeout), nil
	case "anthropic":
		return NewAnthropicBackend(cfg.Name, cfg.Model, cfg.APIKey(), cfg.URL, cfg.MaxTokens, timeout), nil
	case "gemini":
		return NewGeminiBackend(cfg.Name, cfg.Model, cfg.APIKey(), cfg.URL, cfg.MaxTokens, timeout), nil
	case "local":
		if manager == nil {
			return nil, fmt.Errorf("backend %s: local provider needs a call queue", cfg.Name)
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("backend %s: local provider needs a url", cfg.Name)
		}
		return NewLocalBackend(cfg.Name, cfg.Model, cfg.URL, cfg.APIKey(), cfg.MaxTokens, manager, timeout), nil
	default:
		return nil, fmt.Errorf("backend %s: unsupported provider %q", cfg.Name, cfg.Provider)
	}
}

// Registry holds every configured backend by name, each wrapped with logging.
type Registry struct {
	order    []string
	backends map[string]Backend
}

func NewRegistry(cfgs []config.BackendConfig, manager *Manager) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend, len(cfgs))}
	for _, c := range cfgs {
		b, err := NewBackend(c, manager)
		if err != nil {
			return nil, err
		}
		r.Register(b)
	}
	return r, nil
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	if r.backends == nil {
		r.backends = make(map[string]Backend)
	}
	if _, exists := r.backends[b.Name()]; !exists {
		r.order = append(r.order, b.Name())
	}
	r.backends[b.Name()] = WithLogging(b)
}

func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Names lists backends in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// BuildBackends wires every configured backend. Local backends share one
// call queue guarded by a circuit breaker; Stop the manager on shutdown.
func BuildBackends(cfgs []config.BackendConfig, qc *QueueConfig) (*Registry, *Manager, error) {
	if qc == nil {
		qc = DefaultQueueConfig()
	}
	breaker := tools.NewCircuitBreaker("local-llm", qc.FailureThreshold, qc.BreakerTimeout)
	manager := NewManager(qc, breaker)
	reg, err := NewRegistry(cfgs, manager)
	if err != nil {
		manager.Stop()
		return nil, nil, err
	}
	return reg, manager, nil
}
