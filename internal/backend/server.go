// Package backend is a development stand-in for the hosted assistant
// service: it answers /process_voice and serves the synthesized replies.
package backend

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dollar/pkg/audioconv"
)

const (
	msgNoInput       = "No input provided"
	msgNotUnderstood = "Could not understand the audio"
	msgUnexpected    = "An unexpected error occurred"

	maxUpload = 25 << 20
)

type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, path string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Options struct {
	AudioDir    string
	Replier     Replier     // nil: only predefined intents answer
	Synthesizer Synthesizer // required
	Transcriber Transcriber // nil: audio_file uploads fail
}

type Server struct {
	opt Options
}

type processResponse struct {
	TextInput     string `json:"text_input"`
	TextResponse  string `json:"text_response"`
	AudioResponse string `json:"audio_response"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func New(opt Options) *Server {
	if opt.AudioDir == "" {
		opt.AudioDir = "audio_files"
	}
	return &Server{opt: opt}
}

// Router builds the echo instance with every route registered.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/", s.root)
	e.POST("/process_voice", s.processVoice)
	e.GET("/audio/:filename", s.audio)
	return e
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Hello, World!"})
}

func (s *Server) processVoice(c echo.Context) error {
	ctx := c.Request().Context()

	text := c.FormValue("text")
	if text != "" {
		log.Debug("Text input", "text", text)
	} else {
		fh, err := c.FormFile("audio_file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, msgNoInput)
		}
		log.Debug("Processing audio file", "name", fh.Filename, "size", fh.Size)

		text, err = s.transcribe(ctx, fh)
		if err != nil {
			return err
		}
		log.Debug("Recognized text", "text", text)
	}

	reply, ok := Predefined(text)
	if ok {
		log.Debug("Predefined intent matched", "reply", reply)
	} else {
		if s.opt.Replier == nil {
			return errors.New("no chat backend configured")
		}
		log.Debug("Fetching chat reply")
		var err error
		if reply, err = s.opt.Replier.Reply(ctx, text); err != nil {
			return err
		}
	}

	name, err := s.synthesize(ctx, reply)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, processResponse{
		TextInput:     text,
		TextResponse:  reply,
		AudioResponse: name,
	})
}

func (s *Server) transcribe(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if s.opt.Transcriber == nil {
		return "", errors.New("no speech recognizer configured")
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	pcm, err := audioconv.Decode(bytes.NewReader(data), filepath.Ext(fh.Filename), audioconv.Options{})
	if err != nil {
		return "", fmt.Errorf("decode upload: %w", err)
	}

	text, err := s.opt.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, msgNotUnderstood)
	}
	return text, nil
}

// synthesize renders reply into a fresh file in the audio directory and
// returns its name.
func (s *Server) synthesize(ctx context.Context, reply string) (string, error) {
	if err := os.MkdirAll(s.opt.AudioDir, 0o755); err != nil {
		return "", fmt.Errorf("audio dir: %w", err)
	}

	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return "", err
	}
	name := "response_audio_" + hex.EncodeToString(id) + ".wav"

	log.Debug("Converting response to audio", "file", name)
	if err := s.opt.Synthesizer.Synthesize(ctx, reply, filepath.Join(s.opt.AudioDir, name)); err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return name, nil
}

func (s *Server) audio(c echo.Context) error {
	name := c.Param("filename")
	notFound := echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Audio file '%s' not found", name))

	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return notFound
	}
	path := filepath.Join(s.opt.AudioDir, name)
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return notFound
	}

	c.Response().Header().Set(echo.HeaderContentType, "audio/wav")
	return c.File(path)
}

// errorHandler reports failures as {"detail": ...}. Anything that is not
// an *echo.HTTPError is logged and hidden behind a generic message.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := msgUnexpected

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			detail = m
		} else {
			detail = http.StatusText(code)
		}
	} else {
		log.Error("Request failed", "path", c.Request().URL.Path, "err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Detail: detail})
	}
	if err != nil {
		log.Error("Write error response", "err", err)
	}
}
