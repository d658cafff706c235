package config

import (
	"fmt"
	log "log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBackendURL = "https://dollar-ai.onrender.com"
	DefaultSocketPath = "/tmp/dollar.sock"
)

// Config is the front end configuration. Flags override what Load reads
// from the environment.
type Config struct {
	BackendURL  string
	Proxy       string
	HTTPTimeout time.Duration

	Recognizer   string // "whisper" or "openai"
	Language     string
	WhisperModel string
	OpenAIKey    string

	Speak     bool
	VoiceLang string
	CueFile   string
	Notify    bool
	Duck      bool

	SocketPath string
	BusURL     string
}

// Load reads envFile (missing file is not an error) and the process
// environment. Callers run Validate once flag overrides are applied.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Debug("No env file", "path", envFile, "err", err)
		}
	}

	cfg := Config{
		BackendURL:   getenv("DOLLAR_BACKEND_URL", DefaultBackendURL),
		Proxy:        os.Getenv("DOLLAR_PROXY"),
		Recognizer:   getenv("DOLLAR_RECOGNIZER", "whisper"),
		Language:     getenv("DOLLAR_LANGUAGE", "en"),
		WhisperModel: getenv("WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-base.en.bin"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		VoiceLang:    getenv("DOLLAR_VOICE", "en-us"),
		CueFile:      getenv("DOLLAR_CUE", "beep.mp3"),
		SocketPath:   getenv("DOLLAR_SOCKET", DefaultSocketPath),
		BusURL:       os.Getenv("BUS_URL"),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("DOLLAR_HTTP_TIMEOUT", 120*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Speak, err = getBool("DOLLAR_SPEAK", true); err != nil {
		return Config{}, err
	}
	if cfg.Notify, err = getBool("DOLLAR_NOTIFY", false); err != nil {
		return Config{}, err
	}
	if cfg.Duck, err = getBool("DOLLAR_DUCK", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend url is empty")
	}
	switch c.Recognizer {
	case "whisper":
		if c.WhisperModel == "" {
			return fmt.Errorf("whisper recognizer needs WHISPER_MODEL")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai recognizer needs OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown recognizer %q", c.Recognizer)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("negative http timeout")
	}
	return nil
}

// Backend is the development backend configuration.
type Backend struct {
	Addr         string
	AudioDir     string
	LLMBaseURL   string
	LLMKey       string
	LLMModel     string
	WhisperModel string
	VoiceLang    string
}

func LoadBackend(envFile string) (Backend, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Debug("No env file", "path", envFile, "err", err)
		}
	}

	b := Backend{
		Addr:         getenv("HTTP_ADDRESS", ":8000"),
		AudioDir:     getenv("AUDIO_DIR", "audio_files"),
		LLMBaseURL:   getenv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMKey:       os.Getenv("OPENROUTER_API_KEY"),
		LLMModel:     getenv("LLM_MODEL", "deepseek/deepseek-r1"),
		WhisperModel: os.Getenv("WHISPER_MODEL"),
		VoiceLang:    getenv("DOLLAR_VOICE", "en-us"),
	}
	if b.LLMKey == "" {
		log.Warn("OPENROUTER_API_KEY not set - only predefined intents will answer")
	}
	return b, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
