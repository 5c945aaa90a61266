package provider

import (
	"errors"
	"io"
	"log"
)

// Source yields capability providers from one plugin location. A source that
// fails to load is skipped; it must not take the whole session down.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Providers loads and returns the providers this source contributes.
	Providers() ([]CapabilityProvider, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	SourceName string
	Load       func() ([]CapabilityProvider, error)
}

// Name returns the source name.
func (s SourceFunc) Name() string { return s.SourceName }

// Providers invokes the load function.
func (s SourceFunc) Providers() ([]CapabilityProvider, error) { return s.Load() }

// ErrAlreadyDiscovered is returned when Discover is called twice on a catalog.
var ErrAlreadyDiscovered = errors.New("provider catalog already discovered")

// Catalog holds the set of discovered capability providers. It is populated
// exactly once during initialization and read-only afterward.
type Catalog struct {
	providers  []CapabilityProvider
	discovered bool
	logger     *log.Logger
}

// NewCatalog creates an empty catalog. A nil logger discards discovery logs.
func NewCatalog(logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Catalog{logger: logger}
}

// Discover collects providers from every source. A source whose load fails is
// logged and skipped so a single bad plugin cannot abort the session.
// Discover supports a single call per catalog.
func (c *Catalog) Discover(sources []Source) ([]CapabilityProvider, error) {
	if c.discovered {
		return nil, ErrAlreadyDiscovered
	}
	c.discovered = true

	for _, src := range sources {
		provs, err := src.Providers()
		if err != nil {
			c.logger.Printf("skipping provider source %q: %v", src.Name(), err)
			continue
		}
		c.providers = append(c.providers, provs...)
	}

	c.logger.Printf("discovered %d capability providers from %d sources", len(c.providers), len(sources))
	return c.providers, nil
}

// Providers returns the discovered providers in discovery order.
func (c *Catalog) Providers() []CapabilityProvider {
	return c.providers
}
