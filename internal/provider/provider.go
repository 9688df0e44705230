package provider

import (
	"context"
)

// Provider defines the interface for TTS backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// ListVoices returns available voices for this provider
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize generates audio from text. A nil error always comes with a
	// non-empty payload; adapters treat zero-length audio as failure.
	Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error)

	// IsAvailable checks if the provider is available (can be used)
	IsAvailable(ctx context.Context) bool
}

// Voice represents a voice option
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// SynthesizeOptions contains options for text synthesis
type SynthesizeOptions struct {
	Voice      string  `json:"voice,omitempty"`       // Voice ID or name
	Model      string  `json:"model,omitempty"`       // Model to use (tts-1, sonic-2, ...)
	Speed      float64 `json:"speed,omitempty"`       // Speed multiplier (0.25-4.0)
	Format     string  `json:"format,omitempty"`      // Output format (mp3, wav, ...)
	Language   string  `json:"language,omitempty"`    // Language code
	Engine     string  `json:"engine,omitempty"`      // Polly engine (standard, neural, ...)
	SampleRate string  `json:"sample_rate,omitempty"` // Sample rate in Hz
}

// Supported provider names. The set is closed; configuration selects from it.
const (
	NameOpenAI      = "openai"
	NameElevenLabs  = "elevenlabs"
	NameCartesia    = "cartesia"
	NamePolly       = "polly"
	NameGCP         = "gcp"
	NamePlaceholder = "placeholder"
)

// Names returns all supported provider names.
func Names() []string {
	return []string{NameOpenAI, NameElevenLabs, NameCartesia, NamePolly, NameGCP, NamePlaceholder}
}
