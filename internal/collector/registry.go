package collector

import (
	"fmt"

	"go.uber.org/zap"
)

// Auto selects the first available registered source.
const Auto = "auto"

// Registry manages all registered counter sources and picks the one the
// Reader will sample.
type Registry struct {
	sources []Source
	logger  *zap.Logger
}

// NewRegistry creates a new source registry with the given logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sources: make([]Source, 0),
		logger:  logger,
	}
}

// Register adds a source if it's available on the current platform.
// Unavailable sources are logged and skipped.
func (r *Registry) Register(s Source) {
	if s.IsAvailable() {
		r.sources = append(r.sources, s)
		r.logger.Info("Registered counter source", zap.String("name", s.Name()))
	} else {
		r.logger.Warn("Counter source not available, skipping", zap.String("name", s.Name()))
	}
}

// Select returns the source registered under name. Auto, or an empty name,
// returns the first source in registration order.
func (r *Registry) Select(name string) (Source, error) {
	if name == "" || name == Auto {
		if len(r.sources) == 0 {
			return nil, fmt.Errorf("no counter source available")
		}
		return r.sources[0], nil
	}
	for _, s := range r.sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("counter source %q not available", name)
}

// Sources returns a copy of all registered sources.
func (r *Registry) Sources() []Source {
	result := make([]Source, len(r.sources))
	copy(result, r.sources)
	return result
}
