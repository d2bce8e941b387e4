package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vkovalenko/streamscribe/internal/audio"
	"github.com/vkovalenko/streamscribe/internal/config"
	"github.com/vkovalenko/streamscribe/internal/metrics"
	"github.com/vkovalenko/streamscribe/internal/server"
	"github.com/vkovalenko/streamscribe/internal/stream"
	"github.com/vkovalenko/streamscribe/internal/transcript"
	"github.com/vkovalenko/streamscribe/internal/transcription"
	"github.com/vkovalenko/streamscribe/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "streamscribe"
	serviceVersion    = "1.0.0"

	resultPollInterval = 100 * time.Millisecond
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	input := flag.String("input", "", "Audio input: ws:// URL or path to a WAV file")
	language := flag.String("language", "", "Override transcription language (empty means auto-detect)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *language != "" {
		cfg.Engine.Language = *language
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "An -input source is required (ws:// URL or WAV file path)")
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("input", *input),
	)

	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("frame_duration", cfg.Audio.FrameDuration),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.Float64("silence_threshold", cfg.VAD.SilenceThreshold),
		slog.String("engine_endpoint", cfg.Engine.Endpoint),
		slog.String("language", cfg.Engine.Language),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Pick the audio source from the input argument
	var source audio.Source
	if strings.HasPrefix(*input, "ws://") || strings.HasPrefix(*input, "wss://") {
		source = audio.NewWebsocketSource(*input, logger)
	} else {
		source = audio.NewFileSource(*input)
	}

	// Initialize the inference client
	engine, err := transcription.NewClient(transcription.ClientConfig{
		Endpoint:   cfg.Engine.Endpoint,
		APIKey:     cfg.Engine.APIKey,
		Model:      cfg.Engine.Model,
		SampleRate: cfg.Audio.SampleRate,
		Timeout:    cfg.Engine.GetTimeoutDuration(),
		MaxRetries: cfg.Engine.MaxRetries,
	})
	if err != nil {
		logger.Error("Failed to create inference client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	classifier, err := vad.NewEnergyClassifier(cfg.VAD.Sensitivity)
	if err != nil {
		logger.Error("Failed to create VAD classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the pipeline
	pipeline, err := stream.NewPipeline(cfg, source, classifier, engine, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, pipeline, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start the pipeline
	if err := pipeline.Start(); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully")

	// Print finalized sentences as they arrive until a signal comes in
	sessionStart := time.Now()
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			break loop
		case <-ctx.Done():
			logger.Info("Context cancelled, shutting down")
			break loop
		case <-pipeline.Done():
			// A file source reached end of file or the capture
			// connection closed; finish up without waiting for a signal.
			logger.Info("Audio source exhausted, shutting down")
			break loop
		case <-ticker.C:
			for {
				sentence, ok := pipeline.Next(0)
				if !ok {
					break
				}
				offset := time.Since(sessionStart).Seconds()
				fmt.Printf("%s %s\n", transcript.FormatOffset(offset), sentence)
			}
		}
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the pipeline (drains buffered audio and the inference queue)
	if err := pipeline.Stop(); err != nil {
		logger.Error("Error stopping pipeline", slog.String("error", err.Error()))
	}

	// Drain sentences finalized during shutdown
	for {
		sentence, ok := pipeline.Next(0)
		if !ok {
			break
		}
		offset := time.Since(sessionStart).Seconds()
		fmt.Printf("%s %s\n", transcript.FormatOffset(offset), sentence)
	}

	// Print the retained transcript
	if full := pipeline.FullTranscript(false); full != "" {
		fmt.Println()
		fmt.Println("====================")
		fmt.Println("COMPLETE TRANSCRIPTION:")
		fmt.Println("====================")
		fmt.Println(full)
	}

	stats := pipeline.Stats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("frames_received", stats.FramesReceived),
		slog.Uint64("segments_emitted", stats.SegmentsEmitted),
		slog.Uint64("decoded", stats.Decoded),
		slog.Uint64("failures", stats.Failures),
		slog.Uint64("queue_evicted", stats.QueueEvicted),
		slog.String("language", stats.Language),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
