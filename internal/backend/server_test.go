package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dollar/internal/exchange"
	"dollar/pkg/audioconv"
)

type replier struct {
	reply   string
	err     error
	prompts []string
}

func (r *replier) Reply(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.reply, r.err
}

type synth struct {
	err   error
	texts []string
}

func (s *synth) Synthesize(_ context.Context, text, path string) error {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(path, []byte("RIFF"+text), 0o644)
}

type transcriber struct {
	text    string
	samples int
}

func (t *transcriber) Transcribe(_ context.Context, pcm []float32) (string, error) {
	t.samples = len(pcm)
	return t.text, nil
}

type env struct {
	srv    *httptest.Server
	client *exchange.Client
	chat   *replier
	synth  *synth
	stt    *transcriber
	dir    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		chat:  &replier{reply: "forty two"},
		synth: &synth{},
		stt:   &transcriber{text: "what is your name"},
		dir:   filepath.Join(t.TempDir(), "audio_files"),
	}
	s := New(Options{AudioDir: e.dir, Replier: e.chat, Synthesizer: e.synth, Transcriber: e.stt})
	e.srv = httptest.NewServer(s.Router())
	t.Cleanup(e.srv.Close)
	e.client = exchange.NewClient(e.srv.URL, e.srv.Client())
	return e
}

var audioName = regexp.MustCompile(`^response_audio_[0-9a-f]{32}\.wav$`)

func TestProcessVoice_PredefinedIntent(t *testing.T) {
	e := newEnv(t)

	res, err := e.client.Exchange(context.Background(), exchange.Request{Text: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I assist you today?", res.Text)
	assert.Empty(t, e.chat.prompts)
	assert.Equal(t, []string{res.Text}, e.synth.texts)

	name := strings.TrimPrefix(res.AudioURL, e.srv.URL+"/audio/")
	assert.Regexp(t, audioName, name)

	resp, err := e.srv.Client().Get(res.AudioURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF"+res.Text, string(body))
}

func TestProcessVoice_ChatReply(t *testing.T) {
	e := newEnv(t)

	res, err := e.client.Exchange(context.Background(), exchange.Request{Text: "meaning of life"})
	require.NoError(t, err)
	assert.Equal(t, "forty two", res.Text)
	assert.Equal(t, []string{"meaning of life"}, e.chat.prompts)
}

func TestProcessVoice_AudioUpload(t *testing.T) {
	e := newEnv(t)
	wav, err := audioconv.EncodeWAV(make([]float32, 1600), audioconv.SampleRate)
	require.NoError(t, err)

	res, err := e.client.Exchange(context.Background(), exchange.Request{Audio: wav})
	require.NoError(t, err)
	assert.Equal(t, "I am your personal assistant Dollar.", res.Text)
	assert.Equal(t, 1600, e.stt.samples)
}

func TestProcessVoice_TextWinsOverAudio(t *testing.T) {
	e := newEnv(t)
	wav, err := audioconv.EncodeWAV(make([]float32, 160), audioconv.SampleRate)
	require.NoError(t, err)

	res, err := e.client.Exchange(context.Background(), exchange.Request{Text: "help", Audio: wav})
	require.NoError(t, err)
	assert.Equal(t, "Of course! What do you need help with?", res.Text)
	assert.Zero(t, e.stt.samples)
}

func TestProcessVoice_NoInput(t *testing.T) {
	e := newEnv(t)

	_, err := e.client.Exchange(context.Background(), exchange.Request{})
	var re *exchange.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "No input provided", re.Detail)
}

func TestProcessVoice_Silence(t *testing.T) {
	e := newEnv(t)
	e.stt.text = "  "
	wav, err := audioconv.EncodeWAV(make([]float32, 160), audioconv.SampleRate)
	require.NoError(t, err)

	_, err = e.client.Exchange(context.Background(), exchange.Request{Audio: wav})
	var re *exchange.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "Could not understand the audio", re.Detail)
}

func TestProcessVoice_FailuresAreGeneric(t *testing.T) {
	e := newEnv(t)
	e.chat.err = errors.New("upstream 502")

	_, err := e.client.Exchange(context.Background(), exchange.Request{Text: "tell me a joke"})
	var re *exchange.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, "An unexpected error occurred", re.Detail)

	e.chat.err = nil
	e.synth.err = errors.New("espeak-ng missing")
	_, err = e.client.Exchange(context.Background(), exchange.Request{Text: "goodbye"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "An unexpected error occurred", re.Detail)
}

func TestProcessVoice_NoChatConfigured(t *testing.T) {
	srv := httptest.NewServer(New(Options{AudioDir: t.TempDir(), Synthesizer: &synth{}}).Router())
	defer srv.Close()
	client := exchange.NewClient(srv.URL, srv.Client())

	res, err := client.Exchange(context.Background(), exchange.Request{Text: "thank you"})
	require.NoError(t, err)
	assert.Equal(t, "You're welcome!", res.Text)

	_, err = client.Exchange(context.Background(), exchange.Request{Text: "something else"})
	var re *exchange.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
}

func TestAudio_NotFound(t *testing.T) {
	e := newEnv(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/audio/missing.wav")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Audio file 'missing.wav' not found", body.Detail)
}

func TestAudio_RejectsHiddenFiles(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".env"), []byte("secret"), 0o644))

	resp, err := e.srv.Client().Get(e.srv.URL + "/audio/.env")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoot(t *testing.T) {
	e := newEnv(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Hello, World!", body["message"])
}

func TestCORS(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPredefined(t *testing.T) {
	reply, ok := Predefined("WHAT IS YOUR NAME")
	assert.True(t, ok)
	assert.Equal(t, "I am your personal assistant Dollar.", reply)

	_, ok = Predefined("hello there")
	assert.False(t, ok)
}
