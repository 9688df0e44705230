package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartesiaProvider_Name(t *testing.T) {
	p := NewCartesiaProvider("test-api-key")
	assert.Equal(t, "cartesia", p.Name())
}

func TestCartesiaProvider_Synthesize(t *testing.T) {
	t.Run("successful synthesis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/tts/bytes", r.URL.Path)
			assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
			assert.Equal(t, CartesiaVersion, r.Header.Get("Cartesia-Version"))

			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, CartesiaDefaultModel, payload["model_id"])
			assert.Equal(t, "Hello world.", payload["transcript"])

			w.WriteHeader(http.StatusOK)
			w.Write([]byte("cartesia audio"))
		}))
		defer server.Close()

		p := NewCartesiaProvider("test-api-key")
		p.baseURL = server.URL

		audio, err := p.Synthesize(context.Background(), "Hello world.", SynthesizeOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte("cartesia audio"), audio)
	})

	t.Run("missing api key fails without a request", func(t *testing.T) {
		p := NewCartesiaProvider("")

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
		var credErr *CredentialError
		assert.ErrorAs(t, err, &credErr)
	})

	t.Run("non-200 advances as backend error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream broken"))
		}))
		defer server.Close()

		p := NewCartesiaProvider("test-api-key")
		p.baseURL = server.URL

		_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
		var backendErr *BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, http.StatusBadGateway, backendErr.Status)
	})
}

func TestCartesiaProvider_IsAvailable(t *testing.T) {
	assert.False(t, NewCartesiaProvider("").IsAvailable(context.Background()))
	assert.True(t, NewCartesiaProvider("key").IsAvailable(context.Background()))
}
