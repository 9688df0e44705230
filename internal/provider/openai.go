package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenAITTSEndpoint = "/audio/speech"
)

// OpenAIProvider implements the Provider interface for OpenAI Audio API
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI TTS provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: OpenAIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return NameOpenAI
}

// ListVoices returns available OpenAI voices
func (p *OpenAIProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	// OpenAI Audio API has a fixed voice set
	voices := []Voice{
		{ID: "alloy", Name: "Alloy", Language: "en", Gender: "neutral", Description: "Balanced, clear voice", Provider: NameOpenAI},
		{ID: "echo", Name: "Echo", Language: "en", Gender: "male", Description: "Deep, resonant voice", Provider: NameOpenAI},
		{ID: "fable", Name: "Fable", Language: "en", Gender: "neutral", Description: "Expressive, storytelling voice", Provider: NameOpenAI},
		{ID: "onyx", Name: "Onyx", Language: "en", Gender: "male", Description: "Strong, authoritative voice", Provider: NameOpenAI},
		{ID: "nova", Name: "Nova", Language: "en", Gender: "female", Description: "Bright, energetic voice", Provider: NameOpenAI},
		{ID: "shimmer", Name: "Shimmer", Language: "en", Gender: "female", Description: "Warm, friendly voice", Provider: NameOpenAI},
	}
	return voices, nil
}

// Synthesize generates audio from text using OpenAI Audio API
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if p.apiKey == "" {
		return nil, &CredentialError{Provider: NameOpenAI, Reason: "api key not configured"}
	}

	voice := options.Voice
	if voice == "" {
		voice = "alloy"
	}

	model := options.Model
	if model == "" {
		model = "tts-1"
	}

	format := options.Format
	if format == "" {
		format = "mp3"
	}

	speed := options.Speed
	if speed <= 0 {
		speed = 1.0
	}
	// Clamp speed to OpenAI limits
	if speed < 0.25 {
		speed = 0.25
	}
	if speed > 4.0 {
		speed = 4.0
	}

	requestBody := map[string]interface{}{
		"model":           model,
		"input":           text,
		"voice":           voice,
		"response_format": format,
		"speed":           speed,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + OpenAITTSEndpoint
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	log.Debug().
		Str("provider", NameOpenAI).
		Str("voice", voice).
		Str("model", model).
		Float64("speed", speed).
		Msg("Making OpenAI TTS request")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(NameOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CredentialError{Provider: NameOpenAI, Reason: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &BackendError{Provider: NameOpenAI, Status: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(NameOpenAI, err)
	}
	if len(audio) == 0 {
		return nil, &BackendError{Provider: NameOpenAI, Err: ErrEmptyAudio}
	}

	log.Debug().
		Str("provider", NameOpenAI).
		Int("bytes", len(audio)).
		Msg("OpenAI TTS request successful")

	return audio, nil
}

// IsAvailable checks if OpenAI provider is available
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(testCtx, "GET", p.baseURL+"/models", nil)
	if err != nil {
		return false
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("OpenAI API not available")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// wrapTransportError classifies a transport-level failure, marking timeouts so
// the chain can report them distinctly.
func wrapTransportError(name string, err error) error {
	be := &BackendError{Provider: name, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		be.Timeout = true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		be.Timeout = true
	}
	return be
}
