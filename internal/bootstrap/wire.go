package bootstrap

import (
	"os"

	"github.com/rs/zerolog"

	"tutorcast/internal/audio"
	"tutorcast/internal/config"
	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
	"tutorcast/internal/providers/gemini"
	"tutorcast/internal/staging"
	"tutorcast/internal/usecase"
	"tutorcast/internal/video"
)

// Services is the assembled runtime graph.
type Services struct {
	Coordinator *usecase.Coordinator
	Uploads     *staging.Store
	Config      config.Config
	Logger      zerolog.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	client := gemini.NewClient(gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.LiveBaseURL,
		Logger:  logger.With().Str("component", "gemini-live").Logger(),
	})
	solver := gemini.NewSolver(gemini.SolverConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.SolverModel,
	})

	coordinator := usecase.NewCoordinator(
		client,
		solver,
		audio.NewMicCapture(cfg.Audio.RecorderCommand),
		video.NewFrameCapture(cfg.Video.RecorderCommand),
		eventSink,
		usecase.Config{
			Session: domain.SessionConfig{
				Model:              cfg.Gemini.LiveModel,
				ResponseModalities: cfg.Gemini.ResponseModalities,
				SystemInstruction:  cfg.Gemini.SystemInstruction,
			},
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Webcam: ports.VideoConfig{
				InputFormat: cfg.Video.WebcamFormat,
				InputDevice: cfg.Video.WebcamDevice,
				FrameRate:   cfg.Video.FrameRate,
			},
			Screen: ports.VideoConfig{
				InputFormat: cfg.Video.ScreenFormat,
				InputDevice: cfg.Video.ScreenDevice,
				FrameRate:   cfg.Video.FrameRate,
			},
			ChunkSize:      cfg.Session.ChunkSize,
			SampleInterval: cfg.Session.SampleInterval,
			JPEGQuality:    cfg.Session.JPEGQuality,
		},
	)

	uploads := staging.NewStore(int(cfg.Upload.MaxSizeBytes), cfg.Upload.AcceptedTypes)

	return Services{
		Coordinator: coordinator,
		Uploads:     uploads,
		Config:      cfg,
		Logger:      logger,
	}, nil
}
