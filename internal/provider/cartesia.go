package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	CartesiaBaseURL      = "https://api.cartesia.ai"
	CartesiaVersion      = "2025-04-16"
	CartesiaDefaultModel = "sonic-english"
	CartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

// CartesiaProvider implements the Provider interface for the Cartesia TTS API
type CartesiaProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCartesiaProvider creates a new Cartesia TTS provider
func NewCartesiaProvider(apiKey string) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:  apiKey,
		baseURL: CartesiaBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name
func (p *CartesiaProvider) Name() string {
	return NameCartesia
}

// ListVoices returns the default Cartesia voice. The full catalog requires a
// separate voices API and is not needed for synthesis.
func (p *CartesiaProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: CartesiaDefaultVoice, Name: "Sonic Default", Language: "en", Gender: "female", Description: "Cartesia Sonic default voice", Provider: NameCartesia},
	}, nil
}

// Synthesize generates audio from text using the Cartesia bytes endpoint
func (p *CartesiaProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if p.apiKey == "" {
		return nil, &CredentialError{Provider: NameCartesia, Reason: "api key not configured"}
	}

	model := options.Model
	if model == "" {
		model = CartesiaDefaultModel
	}

	voiceID := options.Voice
	if voiceID == "" {
		voiceID = CartesiaDefaultVoice
	}

	language := options.Language
	if language == "" {
		language = "en"
	}

	payload := map[string]interface{}{
		"model_id":   model,
		"transcript": text,
		"voice": map[string]string{
			"mode": "id",
			"id":   voiceID,
		},
		"output_format": map[string]interface{}{
			"container":   "mp3",
			"bit_rate":    128000,
			"sample_rate": 44100,
		},
		"language": language,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Cartesia-Version", CartesiaVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(NameCartesia, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CredentialError{Provider: NameCartesia, Reason: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &BackendError{Provider: NameCartesia, Status: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(NameCartesia, err)
	}
	if len(audio) == 0 {
		return nil, &BackendError{Provider: NameCartesia, Err: ErrEmptyAudio}
	}

	log.Debug().
		Str("provider", NameCartesia).
		Str("voice", voiceID).
		Str("model", model).
		Int("bytes", len(audio)).
		Msg("Cartesia TTS synthesis successful")

	return audio, nil
}

// IsAvailable checks if Cartesia provider is configured
func (p *CartesiaProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}
