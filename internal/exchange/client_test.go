package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchange_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/process_voice", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hello", r.FormValue("text"))
		assert.Empty(t, r.MultipartForm.File[audioField])
		_, _ = w.Write([]byte(`{"text_response":"hi there","audio_response":"abc123"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	res, err := c.Exchange(context.Background(), Request{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text)
	assert.Equal(t, srv.URL+"/audio/abc123", res.AudioURL)
}

func TestExchange_AttachesAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File[audioField]
		require.Len(t, files, 1)
		assert.Equal(t, "user_audio.wav", files[0].Filename)
		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF....", string(data))
		_, _ = w.Write([]byte(`{"text_response":"ok","audio_response":"a.wav"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.Exchange(context.Background(), Request{Text: "hi", Audio: []byte("RIFF....")})
	require.NoError(t, err)
}

func TestExchange_RemoteError(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"server overloaded"}`, "server overloaded"},
		{"no detail", `{}`, genericRemoteMessage},
		{"not json", `<html>bad gateway</html>`, genericRemoteMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, srv.Client()).Exchange(context.Background(), Request{Text: "x"})
			var re *RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, http.StatusInternalServerError, re.Status)
			assert.Equal(t, tc.want, err.Error())
			assert.False(t, IsAbort(err))
		})
	}
}

func TestExchange_MissingAudio(t *testing.T) {
	for _, body := range []string{`{"text_response":"hi"}`, `{"text_response":"hi","audio_response":""}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		res, err := NewClient(srv.URL, srv.Client()).Exchange(context.Background(), Request{Text: "x"})
		srv.Close()

		assert.ErrorIs(t, err, ErrMissingAudio)
		assert.Empty(t, res.AudioURL)
	}
}

func TestExchange_BadSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Exchange(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.False(t, IsAbort(err))
	assert.False(t, errors.Is(err, ErrMissingAudio))
}

func TestExchange_OversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text_response":"`))
		_, _ = w.Write([]byte(strings.Repeat("a", maxBody)))
		_, _ = w.Write([]byte(`","audio_response":"abc"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Exchange(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestExchange_Abort(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := NewClient(srv.URL, srv.Client()).Exchange(ctx, Request{Text: "x"})
		errc <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errc:
		assert.True(t, IsAbort(err))
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not settle after cancel")
	}
}

func TestExchange_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Exchange(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.False(t, IsAbort(err))
}

func TestAudioURL_Escapes(t *testing.T) {
	c := NewClient("https://dollar-ai.onrender.com", nil)
	assert.Equal(t, "https://dollar-ai.onrender.com/audio/a%2Fb%20c.wav", c.AudioURL("a/b c.wav"))
}
