package llm

import (
	"fmt"
	"sort"
)

// constructors maps a provider name to its transport constructor.
var constructors = map[string]func(Config) Provider{
	ProviderAnthropic: func(c Config) Provider { return NewAnthropicProvider(c) },
	ProviderOpenAI:    func(c Config) Provider { return NewOpenAIProvider(c) },
	ProviderGoogle:    func(c Config) Provider { return NewGoogleProvider(c) },
	ProviderXAI:       func(c Config) Provider { return NewXAIProvider(c) },
}

// ProviderFactory builds transports from per-provider configuration
type ProviderFactory struct {
	ProviderConfigs map[string]Config
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(configs map[string]Config) *ProviderFactory {
	return &ProviderFactory{
		ProviderConfigs: configs,
	}
}

// GetProvider returns the transport for providerName.
func (f *ProviderFactory) GetProvider(providerName string) (Provider, error) {
	newProvider, known := constructors[providerName]
	if !known {
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
	config, exists := f.ProviderConfigs[providerName]
	if !exists {
		return nil, fmt.Errorf("configuration for provider '%s' not found", providerName)
	}
	return newProvider(config), nil
}

// GetAllProviders returns every configured provider that has an API key,
// ordered by name.
func (f *ProviderFactory) GetAllProviders() []Provider {
	names := make([]string, 0, len(f.ProviderConfigs))
	for name, config := range f.ProviderConfigs {
		if _, known := constructors[name]; known && config.APIKey != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, constructors[name](f.ProviderConfigs[name]))
	}
	return providers
}
