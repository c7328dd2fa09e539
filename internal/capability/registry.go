package capability

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Provider is one recognizer implementation the host may expose.
type Provider interface {
	Name() string
	// Available returns nil when the provider can create handles on this host.
	Available() error
	New(Config) (Handle, error)
}

// Registry probes providers in preference order.
type Registry struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewRegistry returns a registry that probes providers in the given order.
func NewRegistry(logger zerolog.Logger, providers ...Provider) *Registry {
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Registry{providers: kept, logger: logger}
}

// Providers returns the configured providers in probe order.
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// IsSupported reports whether any provider is available.
func (r *Registry) IsSupported() bool {
	_, err := r.resolve()
	return err == nil
}

// Create builds a handle from the first available provider and returns its name.
func (r *Registry) Create(cfg Config) (Handle, string, error) {
	provider, err := r.resolve()
	if err != nil {
		return nil, "", err
	}
	handle, err := provider.New(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("create %s recognizer: %w", provider.Name(), err)
	}
	return handle, provider.Name(), nil
}

func (r *Registry) resolve() (Provider, error) {
	reasons := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		err := p.Available()
		if err == nil {
			return p, nil
		}
		r.logger.Debug().Str("provider", p.Name()).Err(err).Msg("recognizer provider unavailable")
		reasons = append(reasons, fmt.Sprintf("%s: %v", p.Name(), err))
	}
	if len(reasons) == 0 {
		return nil, ErrUnsupported
	}
	return nil, fmt.Errorf("%w (%s)", ErrUnsupported, strings.Join(reasons, "; "))
}
