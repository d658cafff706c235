package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dollar/internal/backend"
	"dollar/internal/config"
	"dollar/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "Listen address (default HTTP_ADDRESS or :8000)")
	logLevel := cli.StringP("log", "l", "debug", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	cfg, err := config.LoadBackend(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	opt := backend.Options{
		AudioDir:    cfg.AudioDir,
		Synthesizer: backend.Espeak{Voice: cfg.VoiceLang},
	}

	if cfg.LLMKey != "" {
		client := openai.NewClient(
			option.WithAPIKey(cfg.LLMKey),
			option.WithBaseURL(cfg.LLMBaseURL),
		)
		opt.Replier = backend.NewChat(client, cfg.LLMModel)
	}

	if cfg.WhisperModel != "" {
		whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{})
		if err != nil {
			log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
			os.Exit(1)
		}
		defer whisper.Close()
		opt.Transcriber = whisper
	} else {
		log.Warn("WHISPER_MODEL not set - audio uploads will fail")
	}

	e := backend.New(opt).Router()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Listening", "addr", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed", "err", err)
	}
}
