package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faiface/beep"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dollar/internal/audio"
	"dollar/internal/audio/mic"
	"dollar/internal/capture"
	"dollar/internal/config"
	"dollar/internal/coordinator"
	"dollar/internal/exchange"
	"dollar/internal/ipc"
	"dollar/internal/notify"
	"dollar/internal/playback"
	"dollar/internal/playback/device"
	"dollar/internal/proxy"
	"dollar/internal/speech"
	"dollar/internal/speech/espeak"
	"dollar/internal/ui"
	"dollar/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

const outputRate = beep.SampleRate(44100)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	backendURL := cli.StringP("backend", "b", config.DefaultBackendURL, "Backend base url")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address")
	recognizer := cli.StringP("recognizer", "r", "whisper", "Speech recognizer: whisper or openai")
	socketPath := cli.StringP("socket", "s", config.DefaultSocketPath, "Control socket path")
	busURL := cli.StringP("bus", "u", "", "Url of hub")
	noSpeak := cli.Bool("no-speak", false, "Do not speak responses")
	stdin := cli.Bool("stdin", true, "Read text submissions from stdin")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if cli.CommandLine.Changed("backend") {
		cfg.BackendURL = *backendURL
	}
	if cli.CommandLine.Changed("proxy") {
		cfg.Proxy = *proxyAddr
	}
	if cli.CommandLine.Changed("recognizer") {
		cfg.Recognizer = *recognizer
	}
	if cli.CommandLine.Changed("socket") {
		cfg.SocketPath = *socketPath
	}
	if cli.CommandLine.Changed("bus") {
		cfg.BusURL = *busURL
	}
	if *noSpeak {
		cfg.Speak = false
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Bad config", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded config", "backend", cfg.BackendURL, "recognizer", cfg.Recognizer)

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, cfg.HTTPTimeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded proxy")

	out, err := device.NewSpeaker(outputRate)
	if err != nil {
		log.Error("Failed to init speaker", "err", err)
		os.Exit(1)
	}
	// The backend recording plays by itself only when speech is off.
	player := playback.NewPlayer(httpClient, out).WithAutoPlay(!cfg.Speak)

	console := ui.NewConsole(os.Stdout)
	displays := ui.Multi{console}
	if cfg.Notify {
		displays = append(displays, notify.NewDesktop("Dollar"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bus *ui.Bus
	if cfg.BusURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		bus, err = ui.DialBus(dialCtx, cfg.BusURL)
		cancel()
		if err != nil {
			log.Warn("Running without bus", "url", cfg.BusURL, "err", err)
		} else {
			defer bus.Close()
			displays = append(displays, bus)
		}
	}

	deps := coordinator.Deps{
		Exchange: exchange.NewClient(cfg.BackendURL, httpClient),
		Player:   player,
		Display:  displays,
		Mic:      console,
	}

	if cfg.Speak {
		sp, closeSpeech := newSpeaker(cfg.VoiceLang)
		defer closeSpeech()
		deps.Speaker = sp
	}

	adapter, closeCapture := newCapture(cfg, httpClient, out, console)
	defer closeCapture()
	if adapter.Available() {
		deps.Capture = adapter
	} else {
		log.Warn("Voice input is not available")
	}

	coord := coordinator.New(deps)

	srv, err := ipc.StartServer(cfg.SocketPath, func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case ipc.CmdListen:
			var src capture.Source
			if msg.File != "" {
				src = capture.FileSource{Path: msg.File}
			}
			coord.Tap(src)
		case ipc.CmdText:
			coord.Submit(msg.Text)
		case ipc.CmdStop:
			coord.StopPlayback()
		case ipc.CmdReplay:
			if err := player.Play(); err != nil {
				log.Warn("Nothing to replay", "err", err)
			}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	if bus != nil {
		go func() {
			err := bus.Run(ctx, func(m ui.BusMessage) {
				switch m.Kind {
				case ui.KindText:
					coord.Submit(m.Content)
				case ui.KindListen:
					coord.Tap(nil)
				}
			})
			if err != nil && ctx.Err() == nil {
				log.Error("Bus closed", "err", err)
			}
		}()
	}

	if *stdin {
		go readLines(coord)
	}

	log.Info("Boot up - successful", "socket", cfg.SocketPath)

	<-ctx.Done()

	log.Info("Shutting down")
	coord.Close()
	player.Stop()
}

func readLines(coord *coordinator.Coordinator) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		coord.Submit(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Warn("Stdin closed", "err", err)
	}
}

func newSpeaker(voice string) (*speech.Speaker, func()) {
	engine, err := espeak.New(voice)
	if err != nil {
		log.Warn("Falling back to espeak-ng executable", "err", err)
		return speech.NewSpeaker(speech.EspeakCommand(voice)), func() {}
	}
	return speech.NewSpeaker(engine), func() { engine.Close() }
}

func newCapture(cfg config.Config, httpClient *http.Client, out *device.Speaker, console *ui.Console) (*capture.Adapter, func()) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var src capture.Source
	rec := mic.NewRecorder(mic.DefaultRecorderOptions)
	if err := rec.Init(); err != nil {
		log.Warn("Failed to init audio", "err", err)
	} else {
		closers = append(closers, rec.Close)
		src = rec
	}

	log.Debug("Loaded recorder")

	var tr capture.Transcriber
	switch cfg.Recognizer {
	case "openai":
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAIKey),
			option.WithHTTPClient(httpClient),
		)
		tr = capture.NewOpenAI(client, cfg.Language)
	default:
		whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{Language: cfg.Language})
		if err != nil {
			log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
			break
		}
		closers = append(closers, func() { whisper.Close() })
		tr = whisper
	}

	log.Debug("Loaded transcriber", "recognizer", cfg.Recognizer)

	cue, err := notify.LoadCue(cfg.CueFile, out)
	if err != nil {
		log.Debug("No listening cue", "err", err)
	}

	adapter := capture.NewAdapter(src, tr).OnState(func(listening bool) {
		if listening {
			console.SetMic(ui.MicListening)
			if cue != nil {
				cue.Play()
			}
		}
	})
	if cfg.Duck {
		adapter.WithDucker(audio.NewDucker([]string{"dollar", "espeak"}, 10, 0.3, 300*time.Millisecond))
	}

	return adapter, closeAll
}
