package provider

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGCPClient struct {
	lastSynthesize *texttospeechpb.SynthesizeSpeechRequest
	audio          []byte
	synthesizeErr  error
	voices         []*texttospeechpb.Voice
	listErr        error
}

func (c *fakeGCPClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	c.lastSynthesize = req
	if c.synthesizeErr != nil {
		return nil, c.synthesizeErr
	}
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: c.audio}, nil
}

func (c *fakeGCPClient) ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return &texttospeechpb.ListVoicesResponse{Voices: c.voices}, nil
}

func newTestGCPProvider(client GCPClient) *GCPProvider {
	return &GCPProvider{
		client:   client,
		voice:    "en-US-Neural2-F",
		language: "en-US",
	}
}

func TestGCPSynthesize(t *testing.T) {
	client := &fakeGCPClient{audio: []byte("gcp audio")}
	p := newTestGCPProvider(client)

	audio, err := p.Synthesize(context.Background(), "Hello world", SynthesizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("gcp audio"), audio)

	req := client.lastSynthesize
	require.NotNil(t, req)
	assert.Equal(t, "en-US-Neural2-F", req.Voice.Name)
	assert.Equal(t, "en-US", req.Voice.LanguageCode)
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, req.AudioConfig.AudioEncoding)
	assert.Equal(t, 1.0, req.AudioConfig.SpeakingRate)
}

func TestGCPSynthesizeEmptyText(t *testing.T) {
	p := newTestGCPProvider(&fakeGCPClient{audio: []byte("x")})
	_, err := p.Synthesize(context.Background(), "", SynthesizeOptions{})
	assert.Error(t, err)
}

func TestGCPSynthesizeDerivesLanguageFromVoice(t *testing.T) {
	client := &fakeGCPClient{audio: []byte("x")}
	p := newTestGCPProvider(client)

	_, err := p.Synthesize(context.Background(), "Bonjour", SynthesizeOptions{Voice: "fr-FR-Neural2-A"})
	require.NoError(t, err)
	assert.Equal(t, "fr-FR", client.lastSynthesize.Voice.LanguageCode)
}

func TestGCPSynthesizeEmptyAudio(t *testing.T) {
	p := newTestGCPProvider(&fakeGCPClient{audio: nil})
	_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestGCPSynthesizeBackendFailure(t *testing.T) {
	p := newTestGCPProvider(&fakeGCPClient{synthesizeErr: errors.New("rpc error")})
	_, err := p.Synthesize(context.Background(), "Hello", SynthesizeOptions{})
	require.Error(t, err)

	var backendErr *BackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestGCPListVoices(t *testing.T) {
	client := &fakeGCPClient{voices: []*texttospeechpb.Voice{
		{
			Name:          "en-US-Neural2-F",
			LanguageCodes: []string{"en-US"},
			SsmlGender:    texttospeechpb.SsmlVoiceGender_FEMALE,
		},
		{
			Name:          "de-DE-Neural2-B",
			LanguageCodes: []string{"de-DE"},
			SsmlGender:    texttospeechpb.SsmlVoiceGender_MALE,
		},
	}}
	p := newTestGCPProvider(client)

	voices, err := p.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "female", voices[0].Gender)
	assert.Equal(t, "de-DE", voices[1].Language)
}

func TestGCPIsAvailable(t *testing.T) {
	p := newTestGCPProvider(&fakeGCPClient{})
	assert.True(t, p.IsAvailable(context.Background()))

	p = newTestGCPProvider(&fakeGCPClient{listErr: errors.New("unauthenticated")})
	assert.False(t, p.IsAvailable(context.Background()))
}

func TestGCPAudioEncoding(t *testing.T) {
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, gcpAudioEncoding(""))
	assert.Equal(t, texttospeechpb.AudioEncoding_LINEAR16, gcpAudioEncoding("wav"))
	assert.Equal(t, texttospeechpb.AudioEncoding_OGG_OPUS, gcpAudioEncoding("ogg"))
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, gcpAudioEncoding("weird"))
}
