package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElevenLabsProvider(t *testing.T) {
	p := NewElevenLabsProvider("test-api-key")

	assert.NotNil(t, p)
	assert.Equal(t, "test-api-key", p.apiKey)
	assert.Equal(t, ElevenLabsBaseURL, p.baseURL)
	assert.InDelta(t, 0.5, p.settings.Stability, 0.001)
}

func TestElevenLabsProvider_Name(t *testing.T) {
	p := NewElevenLabsProvider("test-api-key")
	assert.Equal(t, "elevenlabs", p.Name())
}

func TestElevenLabsProvider_Synthesize(t *testing.T) {
	t.Run("successful synthesis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Contains(t, r.URL.Path, "/text-to-speech/")
			assert.Equal(t, "test-api-key", r.Header.Get("xi-api-key"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			w.WriteHeader(http.StatusOK)
			w.Write([]byte("mock audio data"))
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		audio, err := p.Synthesize(context.Background(), "Hello world.", SynthesizeOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte("mock audio data"), audio)
	})

	t.Run("uses voice from options", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/text-to-speech/custom-voice")
			w.Write([]byte("audio"))
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{Voice: "custom-voice"})
		assert.NoError(t, err)
	})

	t.Run("missing api key is a credential error", func(t *testing.T) {
		p := NewElevenLabsProvider("")

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
		var credErr *CredentialError
		assert.ErrorAs(t, err, &credErr)
	})

	t.Run("backend error carries status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("rate limited"))
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
		var backendErr *BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, http.StatusTooManyRequests, backendErr.Status)
		assert.Equal(t, "rate limited", backendErr.Body)
	})

	t.Run("empty payload is a failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
		assert.ErrorIs(t, err, ErrEmptyAudio)
	})
}

func TestElevenLabsProvider_ListVoices(t *testing.T) {
	t.Run("successful voice listing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GET", r.Method)
			assert.Equal(t, "test-api-key", r.Header.Get("xi-api-key"))

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"voices": [
					{
						"voice_id": "voice1",
						"name": "Test Voice",
						"description": "A test voice",
						"labels": {"gender": "female", "language": "en"}
					}
				]
			}`))
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		voices, err := p.ListVoices(context.Background())
		require.NoError(t, err)
		require.Len(t, voices, 1)
		assert.Equal(t, "voice1", voices[0].ID)
		assert.Equal(t, "female", voices[0].Gender)
	})

	t.Run("handles API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": {"status": "invalid_api_key"}}`))
		}))
		defer server.Close()

		p := NewElevenLabsProvider("test-api-key")
		p.baseURL = server.URL

		_, err := p.ListVoices(context.Background())
		assert.Error(t, err)
	})
}
