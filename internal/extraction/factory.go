package extraction

import (
	"fmt"
	"log"

	"docfill/internal/config"
	"docfill/internal/port"
)

// ProviderFactory creates a StructuredGenerator from a provider config.
type ProviderFactory func(cfg *config.ExtractionProviderConfig) (port.StructuredGenerator, error)

// registry of provider factories, populated by init() in each provider package.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a generator provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewProvider creates a StructuredGenerator for a single provider config using the registered factory.
func NewProvider(cfg *config.ExtractionProviderConfig) (port.StructuredGenerator, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewGenerator builds the configured generator chain. A single provider is returned as-is;
// several are wrapped in a FallbackGenerator in primary, secondary, tertiary order.
func NewGenerator(cfg *config.ExtractionConfig) (port.StructuredGenerator, error) {
	configs := cfg.Providers()
	if len(configs) == 0 {
		return nil, fmt.Errorf("no extraction provider configured")
	}

	generators := make([]port.StructuredGenerator, 0, len(configs))
	names := make([]string, 0, len(configs))
	for _, pc := range configs {
		g, err := NewProvider(pc)
		if err != nil {
			return nil, err
		}
		generators = append(generators, g)
		names = append(names, pc.Provider)
	}

	if len(generators) == 1 {
		return generators[0], nil
	}
	log.Printf("extraction.NewGenerator: fallback chain %v", names)
	return NewFallbackGenerator(generators, names), nil
}
