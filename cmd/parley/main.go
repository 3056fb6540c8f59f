// Command parley runs a full-duplex voice conversation against an
// OpenAI-Realtime-compatible endpoint: microphone capture streams up,
// synthesized speech streams down, and the transcript renders live in
// the terminal.
//
// Usage:
//
//	go run ./cmd/parley
//	go run ./cmd/parley --display events --debug
//	go run ./cmd/parley --backend mock --say "ping"
//	go run ./cmd/parley --web 8080
//
// Environment variables:
//
//	OPENAI_API_KEY       - API key (required)
//	PARLEY_URL           - Endpoint override
//	PARLEY_MODEL         - Model selector
//	PARLEY_VOICE         - Response voice
//	PARLEY_INSTRUCTIONS  - System prompt
//	PARLEY_AUDIO         - Device backend (auto, malgo, oto, mock)
//	PARLEY_WEB_PORT      - Dashboard port
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/log"
	"github.com/parley-ai/parley/pkg/audio"
	"github.com/parley-ai/parley/pkg/conversation"
	"github.com/parley-ai/parley/pkg/device"
	"github.com/parley-ai/parley/pkg/display"
	"github.com/parley-ai/parley/pkg/realtime"
	"github.com/parley-ai/parley/pkg/web"
)

func main() {
	model := flag.String("model", "", "Model selector (overrides PARLEY_MODEL)")
	voice := flag.String("voice", "", "Response voice (overrides PARLEY_VOICE)")
	instructions := flag.String("instructions", "", "System prompt (overrides PARLEY_INSTRUCTIONS)")
	backend := flag.String("backend", "", "Audio backend: auto, malgo, oto, mock")
	displayMode := flag.String("display", "transcript", "Terminal output: transcript, events, off")
	webPort := flag.String("web", "", "Dashboard port (overrides PARLEY_WEB_PORT)")
	say := flag.String("say", "", "Send one text message after connecting")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Best effort; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlag(&cfg.Model, *model)
	applyFlag(&cfg.Voice, *voice)
	applyFlag(&cfg.Instructions, *instructions)
	applyFlag(&cfg.AudioBackend, *backend)
	applyFlag(&cfg.WebPort, *webPort)
	if *debug {
		cfg.LogLevel = "debug"
	}

	log.Init(cfg.LogLevel)

	if err := run(cfg, display.Mode(*displayMode), *say); err != nil {
		log.Error("parley failed", "error", err)
		os.Exit(1)
	}
}

func applyFlag(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg config.App, displayMode display.Mode, say string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audio devices.
	devCfg := device.DefaultConfig()
	devCfg.Backend = device.Backend(cfg.AudioBackend)
	source, err := device.NewSource(devCfg, log.With("component", "source"))
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	defer source.Close()

	sink, err := device.NewSink(devCfg, log.With("component", "sink"))
	if err != nil {
		return fmt.Errorf("open playback device: %w", err)
	}
	defer sink.Close()

	// Session client.
	client := realtime.NewClient(cfg.APIKey, log.With("component", "realtime"))
	if cfg.URL != "" {
		client.SetURL(cfg.URL)
	}
	session := realtime.DefaultSessionConfig()
	if cfg.Voice != "" {
		session.Voice = cfg.Voice
	}
	if cfg.Instructions != "" {
		session.Instructions = cfg.Instructions
	}
	client.SetSession(session)

	// Pipelines.
	playback := audio.NewPlayback(sink, audio.DefaultPlaybackConfig(), log.With("component", "playback"))
	capture := audio.NewCapture(source, client.AppendInputAudio, audio.DefaultCaptureConfig(), log.With("component", "capture"))

	// Conversation state and event routing.
	convModel := conversation.NewModel()
	router := conversation.NewRouter(convModel, playback, log.With("component", "router"))

	if displayMode != display.ModeOff {
		renderer := display.New(displayMode, convModel, os.Stdout)
		router.OnEvent(renderer.OnEvent)
	}

	var dashboard *web.Server
	if cfg.WebPort != "" {
		dashboard = web.NewServer(cfg.WebPort, convModel, func() web.Status {
			return web.Status{
				Session:  client.State().String(),
				Capture:  capture.Stats(),
				Playback: playback.Stats(),
			}
		})
		router.OnEvent(dashboard.PublishEvent)
		dashboard.StartAsync()
	}

	if err := playback.Start(ctx); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}

	if err := client.Connect(ctx, cfg.Model); err != nil {
		playback.Shutdown()
		return fmt.Errorf("connect: %w", err)
	}
	log.Info("session connected", "model", cfg.Model)

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(ctx, client.Events())
	}()

	if err := capture.Start(ctx); err != nil {
		client.Disconnect()
		playback.Shutdown()
		return fmt.Errorf("start capture: %w", err)
	}

	if say != "" {
		if err := client.SendUserMessage(say); err != nil {
			log.Warn("initial message failed", "error", err)
		}
	}

	// Wait for Ctrl-C or the server dropping the session.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down")
	case <-routerDone:
		log.Info("event stream closed")
	}

	// Teardown order: stop feeding the session, close it, let the
	// router drain the event stream, then silence the speaker.
	if err := capture.Stop(); err != nil {
		log.Warn("capture stop", "error", err)
	}
	if err := client.Disconnect(); err != nil && err != realtime.ErrNotConnected {
		log.Warn("disconnect", "error", err)
	}
	<-routerDone
	cancel()

	if err := playback.Shutdown(); err != nil {
		log.Warn("playback shutdown", "error", err)
	}
	if dashboard != nil {
		if err := dashboard.Shutdown(); err != nil {
			log.Warn("dashboard shutdown", "error", err)
		}
	}

	log.Info("session closed",
		"capture", capture.Stats(),
		"playback", playback.Stats(),
		"items", convModel.Len(),
	)
	return nil
}
