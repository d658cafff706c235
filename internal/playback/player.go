// Package playback loads response audio from the backend and plays it.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

const maxAudioBytes = 32 << 20

// Output is where decoded audio goes, normally the system speaker.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Clear()
}

// LoadError is an audio reference that could not be fetched or decoded.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load audio %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var (
	// ErrSuperseded is returned by a Load overtaken by Stop or another Load.
	ErrSuperseded = errors.New("superseded by stop")

	ErrNothingLoaded = errors.New("no audio loaded")
)

type clip struct {
	url   string
	data  []byte
	ctype string
}

// Player has at most one active source. Loaded audio is kept so Play can
// start it again from the beginning.
type Player struct {
	http     *http.Client
	out      Output
	autoplay bool

	mu      sync.Mutex
	gen     uint64
	loaded  *clip
	current beep.StreamSeekCloser
}

func NewPlayer(httpClient *http.Client, out Output) *Player {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Player{http: httpClient, out: out}
}

// WithAutoPlay makes Load start playback as soon as the audio decodes.
// Without it Load only fetches, checks and keeps the audio.
func (p *Player) WithAutoPlay(on bool) *Player {
	p.autoplay = on
	return p
}

// Load fetches url and waits until it decodes, replacing the current
// source. A Stop issued while loading wins: the loaded audio is dropped.
func (p *Player) Load(ctx context.Context, url string) error {
	gen := p.stop()

	p.mu.Lock()
	p.loaded = nil
	p.mu.Unlock()

	data, ctype, err := p.fetch(ctx, url)
	if err != nil {
		return &LoadError{URL: url, Err: err}
	}

	if err := p.start(gen, &clip{url: url, data: data, ctype: ctype}, p.autoplay); err != nil {
		return &LoadError{URL: url, Err: err}
	}
	return nil
}

// Play starts the loaded audio from the beginning.
func (p *Player) Play() error {
	gen := p.stop()

	p.mu.Lock()
	c := p.loaded
	p.mu.Unlock()
	if c == nil {
		return ErrNothingLoaded
	}

	if err := p.start(gen, c, true); err != nil {
		return &LoadError{URL: c.url, Err: err}
	}
	return nil
}

// Stop halts playback and drops the current source.
func (p *Player) Stop() {
	p.stop()
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// start decodes c and, unless gen is stale, keeps it and optionally hands
// it to the output. The stale check and Play share one critical section.
func (p *Player) start(gen uint64, c *clip, play bool) error {
	stream, format, err := decode(c.data, c.ctype)
	if err != nil {
		return err
	}
	resampled := beep.Resample(4, format.SampleRate, p.out.SampleRate(), stream)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen {
		stream.Close()
		return ErrSuperseded
	}
	p.loaded = c

	if !play {
		stream.Close()
		log.Debug("Audio loaded", "url", c.url, "rate", format.SampleRate)
		return nil
	}

	p.current = stream
	p.out.Play(beep.Seq(resampled, beep.Callback(func() {
		// runs on the output goroutine with its lock held
		go p.finish(stream)
	})))

	log.Debug("Audio playing", "url", c.url, "rate", format.SampleRate)
	return nil
}

func (p *Player) stop() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.out.Clear()
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
	return p.gen
}

func (p *Player) finish(s beep.StreamSeekCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == s {
		s.Close()
		p.current = nil
	}
}

func (p *Player) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	res, err := p.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxAudioBytes))
	if err != nil {
		return nil, "", err
	}
	return data, res.Header.Get("Content-Type"), nil
}

func decode(data []byte, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(data))

	switch kind(data, contentType) {
	case "wav":
		return wav.Decode(rc)
	case "mp3":
		return mp3.Decode(rc)
	case "ogg":
		return vorbis.Decode(rc)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported audio type %q", contentType)
}

func kind(data []byte, contentType string) string {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "audio/vorbis":
		return "ogg"
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}
