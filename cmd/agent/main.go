package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/clipforge-agent/internal/analysis"
	"github.com/clipforge/clipforge-agent/internal/api"
	"github.com/clipforge/clipforge-agent/internal/compose"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/db"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/media"
	"github.com/clipforge/clipforge-agent/internal/playback"
	"github.com/clipforge/clipforge-agent/internal/session"
	"github.com/clipforge/clipforge-agent/internal/store"
	"github.com/clipforge/clipforge-agent/internal/ui"
)

var Version = "0.1.0"

const progressLogCapacity = 256

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.UploadsDir(), cfg.ArtifactsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CLIPFORGE AGENT v0.1.0                  ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	caps := media.ProbeToolchain(cfg.FFmpegPath(), cfg.FFprobePath(), cfg.WhisperPath(), logger)
	if !caps.CanCompose() {
		logger.Warn("ffmpeg or ffprobe not found, upload and composition will fail",
			"has_ffmpeg", caps.HasFFmpeg,
			"has_ffprobe", caps.HasFFprobe,
		)
	}

	ffmpeg := media.NewRealFFmpeg(caps.FFmpegPath, caps.FFprobeBin, cfg.ProbeTimeout(), logger)

	analyzer := buildAnalyzer(cfg, caps, ffmpeg, logger)

	progress := compose.NewProgressLog(progressLogCapacity)
	composer := compose.New(compose.Config{
		FFmpegPath:   caps.FFmpegPath,
		OutputDir:    cfg.ArtifactsDir(),
		FPS:          cfg.CaptureFPS(),
		VideoBitrate: cfg.VideoBitrate(),
	}, progress, logger)

	sessionSvc := session.NewService(
		analyzer,
		composer,
		ffmpeg,
		repo,
		cfg.UploadsDir(),
		cfg.ArtifactsDir(),
		logger,
	)

	playbackSvc := playback.NewServer(logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Session:    sessionSvc,
		Playback:   playbackSvc,
		Repository: repo,
		Progress:   progress,
		Toolchain:  caps,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Session: sessionSvc,
			Addr:    apiServer.Addr(),
			Logger:  logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Watch(ctx)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func buildAnalyzer(cfg *config.EnvConfig, caps *media.Capabilities, ffmpeg media.FFmpeg, logger *slog.Logger) analysis.Analyzer {
	if !cfg.AnalysisEnabled() {
		logger.Warn("no OpenAI API key configured, using stub analyzer")
		return analysis.NewStubAnalyzer()
	}
	if !caps.CanTranscribe() {
		logger.Warn("whisper binary or model not found, using stub analyzer",
			"whisper_path", cfg.WhisperPath(),
			"whisper_model", cfg.WhisperModel(),
		)
		return analysis.NewStubAnalyzer()
	}

	transcriber := analysis.NewTranscriber(ffmpeg, caps.WhisperBin, cfg.WhisperModel(), cfg.TranscribeTimeout())
	classifier := analysis.NewOpenAIClassifier(
		cfg.OpenAIKey(),
		cfg.OpenAIBaseURL(),
		cfg.OpenAIModel(),
		cfg.ClassifyTimeout(),
		logger,
	)
	return analysis.NewPipeline(transcriber, classifier, logger)
}

func ensureDeviceID(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
