package provider

import (
	"bytes"
	"context"

	"github.com/rs/zerolog/log"
)

// placeholderMagic prefixes every placeholder payload so downstream consumers
// can tell it apart from real audio.
var placeholderMagic = []byte("VOXLEAF-PLACEHOLDER\x00")

// PlaceholderProvider is the terminal fallback: instead of failing it returns
// a marked dummy payload, keeping playback pipelines non-blocking. It is only
// appended to a chain when explicitly enabled in configuration.
type PlaceholderProvider struct{}

// NewPlaceholderProvider creates the terminal fallback provider
func NewPlaceholderProvider() *PlaceholderProvider {
	return &PlaceholderProvider{}
}

// Name returns the provider name
func (p *PlaceholderProvider) Name() string {
	return NamePlaceholder
}

// ListVoices returns no voices; the placeholder has none
func (p *PlaceholderProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return nil, nil
}

// Synthesize returns a marked placeholder payload. It never fails.
func (p *PlaceholderProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	log.Warn().Int("text_len", len(text)).Msg("Serving placeholder audio")

	payload := make([]byte, 0, len(placeholderMagic)+len(text))
	payload = append(payload, placeholderMagic...)
	payload = append(payload, []byte(text)...)
	return payload, nil
}

// IsAvailable always reports true
func (p *PlaceholderProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// IsPlaceholder reports whether a payload was produced by the placeholder
// provider rather than a real backend.
func IsPlaceholder(audio []byte) bool {
	return bytes.HasPrefix(audio, placeholderMagic)
}
