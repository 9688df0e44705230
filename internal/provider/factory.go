package provider

import (
	"context"
	"fmt"
	"os"
)

// Settings selects and configures one provider. Credentials are held only for
// the lifetime of the provider instance and are never persisted.
type Settings struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
	Region string `yaml:"region"` // Polly only
	Voice  string `yaml:"voice"`
	Model  string `yaml:"model"`
}

// New creates a provider instance by name. The provider set is closed: an
// unknown name is a configuration error. A voice or model configured in the
// settings binds to that provider and overrides the chain-wide default, since
// voice and model identifiers are provider-specific.
func New(ctx context.Context, s Settings) (Provider, error) {
	p, err := newProvider(ctx, s)
	if err != nil {
		return nil, err
	}
	if s.Voice != "" || s.Model != "" {
		p = &settingsProvider{Provider: p, voice: s.Voice, model: s.Model}
	}
	return p, nil
}

func newProvider(ctx context.Context, s Settings) (Provider, error) {
	switch s.Name {
	case NameOpenAI:
		return NewOpenAIProvider(keyOrEnv(s.APIKey, "OPENAI_API_KEY")), nil
	case NameElevenLabs:
		return NewElevenLabsProvider(keyOrEnv(s.APIKey, "ELEVENLABS_API_KEY")), nil
	case NameCartesia:
		return NewCartesiaProvider(keyOrEnv(s.APIKey, "CARTESIA_API_KEY")), nil
	case NamePolly:
		return NewPollyProvider(ctx, s.Region)
	case NameGCP:
		return NewGCPProvider(ctx)
	case NamePlaceholder:
		return NewPlaceholderProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Name)
	}
}

// settingsProvider pins a configured voice and model onto one chain member.
type settingsProvider struct {
	Provider
	voice string
	model string
}

func (p *settingsProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	if p.voice != "" {
		options.Voice = p.voice
	}
	if p.model != "" {
		options.Model = p.model
	}
	return p.Provider.Synthesize(ctx, text, options)
}

// NewChainFromSettings builds a fallback chain from an ordered provider list.
// When placeholder is set, the terminal placeholder provider is appended last.
func NewChainFromSettings(ctx context.Context, settings []Settings, placeholder bool) (*Chain, error) {
	var providers []Provider
	for _, s := range settings {
		p, err := New(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("configure provider %q: %w", s.Name, err)
		}
		providers = append(providers, p)
	}
	if placeholder {
		providers = append(providers, NewPlaceholderProvider())
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return NewChain(providers), nil
}

// keyOrEnv falls back to an environment variable when the configured key is empty
func keyOrEnv(key, envVar string) string {
	if key != "" {
		return key
	}
	return os.Getenv(envVar)
}
