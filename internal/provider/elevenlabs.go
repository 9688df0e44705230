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
	ElevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	ElevenLabsDefaultModel = "eleven_flash_v2_5"
)

// ElevenLabsVoiceSettings tune the synthesis for a request
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// ElevenLabsProvider implements the Provider interface for ElevenLabs TTS
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	settings   ElevenLabsVoiceSettings
	httpClient *http.Client
}

// NewElevenLabsProvider creates a new ElevenLabs TTS provider
func NewElevenLabsProvider(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:  apiKey,
		baseURL: ElevenLabsBaseURL,
		settings: ElevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			UseSpeakerBoost: true,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name
func (p *ElevenLabsProvider) Name() string {
	return NameElevenLabs
}

// Synthesize generates audio from text using ElevenLabs API
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if p.apiKey == "" {
		return nil, &CredentialError{Provider: NameElevenLabs, Reason: "api key not configured"}
	}

	voiceID := options.Voice
	if voiceID == "" {
		voiceID = ElevenLabsDefaultVoice
	}

	model := options.Model
	if model == "" {
		model = ElevenLabsDefaultModel
	}

	payload := map[string]interface{}{
		"text":           text,
		"model_id":       model,
		"voice_settings": p.settings,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(NameElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CredentialError{Provider: NameElevenLabs, Reason: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &BackendError{Provider: NameElevenLabs, Status: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(NameElevenLabs, err)
	}
	if len(audio) == 0 {
		return nil, &BackendError{Provider: NameElevenLabs, Err: ErrEmptyAudio}
	}

	log.Debug().
		Str("provider", NameElevenLabs).
		Str("voice", voiceID).
		Int("bytes", len(audio)).
		Msg("ElevenLabs TTS synthesis successful")

	return audio, nil
}

// ListVoices returns available ElevenLabs voices
func (p *ElevenLabsProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Voices []struct {
			VoiceID     string            `json:"voice_id"`
			Name        string            `json:"name"`
			Description string            `json:"description"`
			Labels      map[string]string `json:"labels"`
		} `json:"voices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var voices []Voice
	for _, v := range response.Voices {
		gender := "neutral"
		if g, ok := v.Labels["gender"]; ok {
			gender = g
		}

		language := "en-US"
		if lang, ok := v.Labels["language"]; ok {
			language = lang
		}

		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Language:    language,
			Gender:      gender,
			Description: v.Description,
			Provider:    NameElevenLabs,
		})
	}

	return voices, nil
}

// IsAvailable checks if ElevenLabs provider is configured and available
func (p *ElevenLabsProvider) IsAvailable(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(testCtx, "GET", p.baseURL+"/user", nil)
	if err != nil {
		return false
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("ElevenLabs API not available")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
