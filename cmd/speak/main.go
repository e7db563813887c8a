// Command speak runs a voice conversation with a language model:
// listen on the microphone, transcribe, generate a reply, and speak it
// back, until the user says goodbye.
//
// Usage:
//
//	speak                          # voice mode with config defaults
//	speak -mode text               # type instead of talking
//	speak -mode demo               # scripted demo turns, no audio
//	speak -config speak.yaml -llm ollama -model llama3.2
//	speak -list-devices            # enumerate audio devices
//	speak -test-audio              # record 3s and play it back
//	speak -web :8080               # also serve the dashboard
//
// Environment variables:
//
//	OPENAI_API_KEY      - whisper_api STT, openai TTS and LLM
//	ELEVENLABS_API_KEY  - elevenlabs TTS
//	GOOGLE_API_KEY      - google STT
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benchidera/speak-to-llm/internal/config"
	"github.com/benchidera/speak-to-llm/internal/log"
	"github.com/benchidera/speak-to-llm/pkg/audio"
	"github.com/benchidera/speak-to-llm/pkg/audioio"
	"github.com/benchidera/speak-to-llm/pkg/conversation"
	"github.com/benchidera/speak-to-llm/pkg/llm"
	"github.com/benchidera/speak-to-llm/pkg/stt"
	"github.com/benchidera/speak-to-llm/pkg/tts"
	"github.com/benchidera/speak-to-llm/pkg/web"
)

func main() {
	mode := flag.String("mode", "voice", "Conversation mode: voice, text, demo")
	configPath := flag.String("config", "", "Path to YAML config file")
	sttProvider := flag.String("stt", "", "STT provider override (whisper_api, whisper_server, google)")
	ttsProvider := flag.String("tts", "", "TTS provider override (elevenlabs, elevenlabs_ws, openai)")
	llmProvider := flag.String("llm", "", "LLM provider override (openai, ollama)")
	model := flag.String("model", "", "LLM model override")
	webAddr := flag.String("web", "", "Dashboard listen address (e.g. :8080); empty disables")
	validateOnly := flag.Bool("validate-config", false, "Validate configuration and exit")
	listDevices := flag.Bool("list-devices", false, "List audio devices and exit")
	testAudio := flag.Bool("test-audio", false, "Record a few seconds and play it back, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Flag overrides beat file and environment.
	if *sttProvider != "" {
		cfg.STT.Provider = *sttProvider
	}
	if *ttsProvider != "" {
		cfg.TTS.Provider = *ttsProvider
	}
	if *llmProvider != "" {
		cfg.LLM.Provider = *llmProvider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *webAddr != "" {
		cfg.App.WebAddr = *webAddr
	}

	log.Init(cfg.App.LogLevel)
	logger := log.L()

	if *listDevices {
		if err := printDevices(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintln(os.Stderr, issue.Error())
		}
		os.Exit(1)
	}
	if *validateOnly {
		fmt.Println("config ok:", cfg.Summary())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *testAudio {
		if err := runAudioTest(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "audio test failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("starting", "mode", *mode, "providers", cfg.Summary())

	if err := run(ctx, cfg, *mode); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session failed", "error", err)
		os.Exit(1)
	}
}

// run assembles the pipeline for the selected mode and drives the
// conversation until it ends.
func run(ctx context.Context, cfg config.Config, mode string) error {
	logger := log.L()

	llmProvider, err := llm.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	defer llmProvider.Close()

	genOpts := []llm.GeneratorOption{
		llm.WithGeneratorLogger(logger),
		llm.WithContextWindow(llm.ContextWindowFor(cfg.LLM.Provider)),
	}
	if cfg.LLM.SystemPrompt != "" {
		genOpts = append(genOpts, llm.WithSystemPrompt(cfg.LLM.SystemPrompt))
	}
	generator := llm.NewGenerator(llmProvider, genOpts...)
	generator.SetTemperature(cfg.LLM.Temperature)
	generator.SetMaxTokens(cfg.LLM.MaxTokens)

	switch mode {
	case "text", "demo":
		return runTextMode(ctx, generator, mode)
	case "voice":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	transcriber, err := stt.NewFromConfig(cfg.STT, logger)
	if err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	defer transcriber.Close()

	ttsProvider, err := tts.NewFromConfig(cfg.TTS, logger)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	defer ttsProvider.Close()

	audioCfg := audioConfig(cfg)
	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	defer source.Close()

	sink, err := audioio.NewSink(audioCfg, logger)
	if err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}
	defer sink.Close()

	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer source.Stop()
	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	defer sink.Stop()

	recorder, err := audio.NewRecorder(source, gateConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	speaker := tts.NewSpeaker(ttsProvider, sink,
		tts.WithVolume(cfg.TTS.Volume),
		tts.WithSpeakerLogger(logger),
	)

	opts := []conversation.Option{conversation.WithLogger(logger)}

	var store *conversation.Store
	if cfg.App.SaveConversations {
		store, err = conversation.NewStore(cfg.App.ConversationDir)
		if err != nil {
			logger.Warn("transcript store disabled", "error", err)
		} else {
			opts = append(opts, conversation.WithStore(store))
		}
	}

	orch := conversation.NewOrchestrator(recorder, transcriber, generator, speaker, opts...)

	if cfg.App.WebAddr != "" {
		srv := startDashboard(cfg, orch, store)
		defer srv.Shutdown()
	}

	fmt.Println("🎤 Listening. Say \"goodbye\" to end the conversation.")
	return orch.Run(ctx)
}

// runTextMode drives the conversation from stdin (text mode) or a
// canned script (demo mode), with replies printed instead of spoken.
func runTextMode(ctx context.Context, generator *llm.Generator, mode string) error {
	orch := conversation.NewOrchestrator(
		nil, nil, generator, printVoice{},
		conversation.WithLogger(log.L()),
	)

	if mode == "demo" {
		script := []string{
			"Hello! What can you do?",
			"Tell me a fun fact about the ocean.",
			"goodbye",
		}
		for _, line := range script {
			if err := ctx.Err(); err != nil {
				return err
			}
			fmt.Printf("you> %s\n", line)
			if orch.IsExitPhrase(line) {
				fmt.Println("assistant> Goodbye!")
				return nil
			}
			reply, err := orch.ProcessText(ctx, line)
			if err != nil {
				return err
			}
			fmt.Printf("assistant> %s\n", reply)
		}
		return nil
	}

	fmt.Println("Type your message. Say \"goodbye\" to end the conversation.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if orch.IsExitPhrase(line) {
			fmt.Println("assistant> Goodbye!")
			return nil
		}

		reply, err := orch.ProcessText(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("assistant> %s\n", reply)
	}
}

// printVoice satisfies the orchestrator's voice stage by printing.
type printVoice struct{}

func (printVoice) Speak(ctx context.Context, text string) error {
	fmt.Printf("assistant> %s\n", text)
	return nil
}

// startDashboard brings up the web server alongside the conversation.
func startDashboard(cfg config.Config, orch *conversation.Orchestrator, store *conversation.Store) *web.Server {
	opts := []web.ServerOption{
		web.WithServerLogger(log.L()),
		web.WithProviders(web.Providers{
			STT: cfg.STT.Provider,
			LLM: cfg.LLM.Provider,
			TTS: cfg.TTS.Provider,
		}),
	}
	if store != nil {
		opts = append(opts, web.WithStore(store))
	}

	srv := web.NewServer(cfg.App.WebAddr, orch, opts...)
	orch.SetTurnListener(srv.PublishTurn)
	srv.StartAsync()
	return srv
}

// runAudioTest records a few seconds from the microphone and plays it
// straight back, to verify the capture and playback path end to end.
func runAudioTest(ctx context.Context, cfg config.Config) error {
	logger := log.L()
	audioCfg := audioConfig(cfg)

	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := audioio.NewSink(audioCfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := source.Start(ctx); err != nil {
		return err
	}
	defer source.Stop()
	if err := sink.Start(ctx); err != nil {
		return err
	}
	defer sink.Stop()

	recorder, err := audio.NewRecorder(source, gateConfig(cfg), logger)
	if err != nil {
		return err
	}

	fmt.Println("🎤 Recording 3 seconds...")
	buf, err := recorder.CaptureFor(ctx, 3*time.Second)
	if err != nil {
		return err
	}
	stats := audio.Analyze(buf)
	fmt.Printf("Captured %s of audio (%d chunks)\n", stats.Duration.Round(time.Millisecond), buf.Chunks())
	fmt.Printf("Level: RMS %.0f, peak %d\n", stats.RMS, stats.Peak)

	fmt.Println("🔊 Playing back...")
	samples := buf.Samples()
	chunkSize := audioCfg.ChunkSize
	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[start:end],
			SampleRate: audioCfg.SampleRate,
			Channels:   audioCfg.Channels,
		}
		if err := sink.Write(ctx, chunk); err != nil {
			return err
		}
	}
	return sink.Flush(ctx)
}

// printDevices lists the devices the configured backend can see.
func printDevices(cfg config.Config) error {
	devices, err := audioio.ListDevices(audioio.Backend(cfg.Audio.Backend))
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no audio devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-12s %-24s (%s)\n", d.ID, d.Name, d.Backend)
	}
	return nil
}

func audioConfig(cfg config.Config) audioio.Config {
	return audioio.Config{
		Backend:    audioio.Backend(cfg.Audio.Backend),
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		ChunkSize:  cfg.Audio.ChunkSize,
		Device:     cfg.Audio.Device,
	}
}

func gateConfig(cfg config.Config) audio.GateConfig {
	return audio.GateConfig{
		SilenceThreshold:   cfg.Audio.SilenceThreshold,
		MaxSilentChunks:    cfg.Audio.MaxSilentChunks,
		MinRecordingChunks: cfg.Audio.MinChunks,
		MaxChunks:          cfg.Audio.MaxTotalChunks,
	}
}
