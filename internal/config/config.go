package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the tutoring backend.
type Config struct {
	Gemini  GeminiConfig
	Audio   AudioConfig
	Video   VideoConfig
	Upload  UploadConfig
	Session SessionConfig
}

type GeminiConfig struct {
	APIKey             string
	LiveBaseURL        string
	LiveModel          string
	SolverModel        string
	ResponseModalities []string
	SystemInstruction  string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type VideoConfig struct {
	RecorderCommand string
	WebcamFormat    string
	WebcamDevice    string
	ScreenFormat    string
	ScreenDevice    string
	FrameRate       int
}

type UploadConfig struct {
	MaxSizeBytes  int64
	AcceptedTypes []string
}

type SessionConfig struct {
	ChunkSize      int
	SampleInterval time.Duration
	JPEGQuality    int
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	apiKey := firstNonEmpty(
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("GOOGLE_API_KEY"),
	)
	if strings.TrimSpace(apiKey) == "" {
		return Config{}, errors.New("GEMINI_API_KEY is not configured")
	}

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:             strings.TrimSpace(apiKey),
			LiveBaseURL:        envOrDefault("TUTORCAST_LIVE_BASE", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"),
			LiveModel:          envOrDefault("TUTORCAST_LIVE_MODEL", "models/gemini-2.0-flash-exp"),
			SolverModel:        envOrDefault("TUTORCAST_SOLVER_MODEL", "gemini-2.0-flash-exp"),
			ResponseModalities: splitNonEmpty(envOrDefault("TUTORCAST_RESPONSE_MODALITIES", "TEXT")),
			SystemInstruction:  strings.TrimSpace(os.Getenv("TUTORCAST_SYSTEM_INSTRUCTION")),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("TUTORCAST_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("TUTORCAST_AUDIO_INPUT_FORMAT", defaultAudioFormat()),
			InputDevice:     envOrDefault("TUTORCAST_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("TUTORCAST_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("TUTORCAST_CHANNELS", 1),
		},
		Video: VideoConfig{
			RecorderCommand: envOrDefault("TUTORCAST_FFMPEG_COMMAND", "ffmpeg"),
			WebcamFormat:    envOrDefault("TUTORCAST_WEBCAM_FORMAT", defaultWebcamFormat()),
			WebcamDevice:    envOrDefault("TUTORCAST_WEBCAM_DEVICE", defaultWebcamDevice()),
			ScreenFormat:    envOrDefault("TUTORCAST_SCREEN_FORMAT", defaultScreenFormat()),
			ScreenDevice:    envOrDefault("TUTORCAST_SCREEN_DEVICE", defaultScreenDevice()),
			FrameRate:       envOrDefaultInt("TUTORCAST_VIDEO_FRAMERATE", 5),
		},
		Upload: UploadConfig{
			MaxSizeBytes:  int64(envOrDefaultInt("TUTORCAST_UPLOAD_MAX_MB", 10)) * 1024 * 1024,
			AcceptedTypes: splitNonEmpty(envOrDefault("TUTORCAST_UPLOAD_TYPES", "image/jpeg,image/png,image/gif,image/webp")),
		},
		Session: SessionConfig{
			ChunkSize:      envOrDefaultInt("TUTORCAST_CHUNK_SIZE", 4096),
			SampleInterval: envOrDefaultDuration("TUTORCAST_FRAME_INTERVAL", 2*time.Second),
			JPEGQuality:    envOrDefaultInt("TUTORCAST_JPEG_QUALITY", 85),
		},
	}

	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.SampleInterval <= 0 {
		cfg.Session.SampleInterval = 2 * time.Second
	}

	return cfg, nil
}

func defaultAudioFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	default:
		return "pulse"
	}
}

func defaultWebcamFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	default:
		return "v4l2"
	}
}

func defaultWebcamDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return "0"
	default:
		return "/dev/video0"
	}
}

func defaultScreenFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	default:
		return "x11grab"
	}
}

func defaultScreenDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return "1"
	default:
		return ":0.0"
	}
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
