package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	log "log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	processPath   = "/process_voice"
	audioPath     = "/audio/"
	audioField    = "audio_file"
	audioFilename = "user_audio.wav"

	maxBody = 1 << 20
)

// Request is the payload of one turn.
type Request struct {
	Text  string
	Audio []byte // WAV; attached only when non-empty
}

// Result is a parsed backend response.
type Result struct {
	Text     string
	AudioURL string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
	}
}

type response struct {
	TextResponse  string `json:"text_response"`
	AudioResponse string `json:"audio_response"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Exchange posts req and waits for the backend. Canceling ctx aborts the
// underlying request and yields an error for which IsAbort is true.
func (c *Client) Exchange(ctx context.Context, req Request) (Result, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+processPath, body)
	if err != nil {
		return Result{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	log.Debug("Exchange", "text", req.Text, "audio", len(req.Audio))

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, aborted(ctx.Err())
		}
		return Result{}, fmt.Errorf("post: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, aborted(ctx.Err())
		}
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return Result{}, &RemoteError{Status: res.StatusCode, Detail: e.Detail}
	}
	if len(raw) > maxBody {
		return Result{}, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxBody)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if out.AudioResponse == "" {
		return Result{Text: out.TextResponse}, ErrMissingAudio
	}

	return Result{
		Text:     out.TextResponse,
		AudioURL: c.AudioURL(out.AudioResponse),
	}, nil
}

// AudioURL templates an audio_response identifier into the audio endpoint.
func (c *Client) AudioURL(id string) string {
	return c.BaseURL + audioPath + url.PathEscape(id)
}

func encodeForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("text", req.Text); err != nil {
		return nil, "", err
	}
	if len(req.Audio) > 0 {
		fw, err := w.CreateFormFile(audioField, audioFilename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(req.Audio); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
