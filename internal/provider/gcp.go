package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
)

// GCPClient interface defines the methods we need from the Cloud TTS client
type GCPClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
}

// GCPProvider implements the Provider interface for Google Cloud Text-to-Speech
type GCPProvider struct {
	client   GCPClient
	voice    string
	language string
}

// NewGCPProvider creates a new Google Cloud TTS provider. Authentication is
// handled via GOOGLE_APPLICATION_CREDENTIALS or Application Default Credentials.
func NewGCPProvider(ctx context.Context) (*GCPProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP TTS client: %w", err)
	}

	return &GCPProvider{
		client:   client,
		voice:    "en-US-Neural2-F",
		language: "en-US",
	}, nil
}

// Name returns the provider name
func (p *GCPProvider) Name() string {
	return NameGCP
}

// ListVoices returns available voices from Google Cloud TTS
func (p *GCPProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	resp, err := p.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list GCP voices: %w", err)
	}

	var voices []Voice
	for _, v := range resp.Voices {
		for _, langCode := range v.LanguageCodes {
			gender := "unknown"
			switch v.SsmlGender {
			case texttospeechpb.SsmlVoiceGender_MALE:
				gender = "male"
			case texttospeechpb.SsmlVoiceGender_FEMALE:
				gender = "female"
			case texttospeechpb.SsmlVoiceGender_NEUTRAL:
				gender = "neutral"
			}

			voices = append(voices, Voice{
				ID:       v.Name,
				Name:     v.Name,
				Language: langCode,
				Gender:   gender,
				Provider: NameGCP,
			})
		}
	}

	return voices, nil
}

// Synthesize generates audio from text using Google Cloud TTS
func (p *GCPProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := p.voice
	if options.Voice != "" {
		voice = options.Voice
	}

	language := p.language
	if options.Language != "" {
		language = options.Language
	} else if voice != "" {
		// Extract language from voice name (e.g., en-US-Neural2-F -> en-US)
		parts := strings.Split(voice, "-")
		if len(parts) >= 2 {
			language = parts[0] + "-" + parts[1]
		}
	}

	speed := options.Speed
	if speed <= 0 {
		speed = 1.0
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: gcpAudioEncoding(options.Format),
			SpeakingRate:  speed,
		},
	}

	log.Debug().
		Str("provider", NameGCP).
		Str("voice", voice).
		Str("language", language).
		Msg("Making GCP TTS synthesis request")

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, wrapTransportError(NameGCP, err)
	}
	if len(resp.AudioContent) == 0 {
		return nil, &BackendError{Provider: NameGCP, Err: ErrEmptyAudio}
	}

	return resp.AudioContent, nil
}

// IsAvailable checks if the GCP provider is available
func (p *GCPProvider) IsAvailable(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.ListVoices(checkCtx, &texttospeechpb.ListVoicesRequest{})
	return err == nil
}

// gcpAudioEncoding converts a format string to a GCP audio encoding
func gcpAudioEncoding(format string) texttospeechpb.AudioEncoding {
	switch strings.ToLower(format) {
	case "", "mp3":
		return texttospeechpb.AudioEncoding_MP3
	case "wav", "linear16":
		return texttospeechpb.AudioEncoding_LINEAR16
	case "ogg", "ogg_opus":
		return texttospeechpb.AudioEncoding_OGG_OPUS
	default:
		return texttospeechpb.AudioEncoding_MP3
	}
}
