package circuitbreaker

import (
	"sync"

	"github.com/resilientlabs/analytics-api/internal/observability"
)

// Registry manages named circuit breakers sharing a default configuration.
type Registry struct {
	breakers sync.Map
	config   *Config
	logger   observability.Logger
}

// NewRegistry creates a circuit breaker registry.
func NewRegistry(config *Config, logger observability.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Registry{
		config: config,
		logger: logger,
	}
}

// Get returns the breaker with the given name, or nil.
func (r *Registry) Get(name string) *CircuitBreaker {
	value, ok := r.breakers.Load(name)
	if !ok {
		return nil
	}
	return value.(*CircuitBreaker)
}

// GetOrCreate returns the named breaker, creating it with the registry
// default configuration if it does not exist.
func (r *Registry) GetOrCreate(name string) (*CircuitBreaker, error) {
	return r.GetOrCreateWithConfig(name, r.config)
}

// GetOrCreateWithConfig returns the named breaker, creating it with the
// given configuration if it does not exist.
func (r *Registry) GetOrCreateWithConfig(name string, config *Config) (*CircuitBreaker, error) {
	if value, ok := r.breakers.Load(name); ok {
		return value.(*CircuitBreaker), nil
	}

	cb, err := New(name, config, r.logger)
	if err != nil {
		return nil, err
	}

	actual, loaded := r.breakers.LoadOrStore(name, cb)
	if loaded {
		return actual.(*CircuitBreaker), nil
	}

	r.logger.Debug("created circuit breaker",
		observability.String("name", name))
	return cb, nil
}

// Register adds an existing breaker to the registry. When the name is
// already taken the registered breaker is returned instead.
func (r *Registry) Register(cb *CircuitBreaker) *CircuitBreaker {
	actual, _ := r.breakers.LoadOrStore(cb.Name(), cb)
	return actual.(*CircuitBreaker)
}

// Remove removes a breaker from the registry.
func (r *Registry) Remove(name string) {
	r.breakers.Delete(name)
}

// List returns all breakers in the registry.
func (r *Registry) List() []*CircuitBreaker {
	var breakers []*CircuitBreaker
	r.breakers.Range(func(_, value any) bool {
		breakers = append(breakers, value.(*CircuitBreaker))
		return true
	})
	return breakers
}

// ResetAll resets every breaker to Closed.
func (r *Registry) ResetAll() {
	r.breakers.Range(func(_, value any) bool {
		value.(*CircuitBreaker).Reset()
		return true
	})
	r.logger.Info("reset all circuit breakers")
}

// StatusAll returns a snapshot of every breaker keyed by name.
func (r *Registry) StatusAll() map[string]Status {
	statuses := make(map[string]Status)
	r.breakers.Range(func(key, value any) bool {
		statuses[key.(string)] = value.(*CircuitBreaker).Status()
		return true
	})
	return statuses
}

// Count returns the number of registered breakers.
func (r *Registry) Count() int {
	n := 0
	r.breakers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
