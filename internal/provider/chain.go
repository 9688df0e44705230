package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCallTimeout bounds a single provider call. Exceeding it counts as
// that provider's failure and the chain moves on.
const DefaultCallTimeout = 45 * time.Second

// Chain tries providers strictly in configuration order until one returns
// non-empty audio. Ordering is fixed, not load-based.
type Chain struct {
	providers   []Provider
	callTimeout time.Duration
}

// NewChain creates a fallback chain over the given providers, primary first.
func NewChain(providers []Provider) *Chain {
	return &Chain{
		providers:   providers,
		callTimeout: DefaultCallTimeout,
	}
}

// WithCallTimeout overrides the per-provider call timeout.
func (c *Chain) WithCallTimeout(d time.Duration) *Chain {
	if d > 0 {
		c.callTimeout = d
	}
	return c
}

// Providers returns the chain members in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Synthesize invokes providers in order and returns the first non-empty
// result along with the name of the provider that produced it. Individual
// failures are logged and swallowed; only the aggregate failure propagates.
func (c *Chain) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, string, error) {
	var lastErr error

	for _, p := range c.providers {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		audio, err := p.Synthesize(callCtx, text, options)
		cancel()

		if err == nil && len(audio) > 0 {
			return audio, p.Name(), nil
		}
		if err == nil {
			err = &BackendError{Provider: p.Name(), Err: ErrEmptyAudio}
		}

		lastErr = err

		var credErr *CredentialError
		if errors.As(err, &credErr) {
			log.Warn().
				Str("provider", p.Name()).
				Msg("Provider credentials missing or rejected, trying next")
		} else {
			log.Warn().
				Err(err).
				Str("provider", p.Name()).
				Msg("Provider synthesis failed, trying next")
		}
	}

	return nil, "", &AllFailedError{Attempts: len(c.providers), Last: lastErr}
}
