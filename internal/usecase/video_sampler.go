package usecase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

type videoSamplerConfig struct {
	SampleInterval time.Duration
	JPEGQuality    int
}

// videoSampler periodically snapshots the latest captured frame, downscales
// it, and streams it into the live session as a JPEG chunk.
type videoSampler struct {
	source  ports.VideoSource
	closing chan struct{}
	done    chan struct{}
}

func startVideoSampler(
	source ports.VideoSource,
	session ports.LiveSession,
	cfg videoSamplerConfig,
	events ports.EventSink,
) *videoSampler {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 85
	}

	s := &videoSampler{
		source:  source,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(session, cfg, events)
	return s
}

func (s *videoSampler) run(session ports.LiveSession, cfg videoSamplerConfig, events ports.EventSink) {
	defer close(s.done)
	// Release the source even when the loop ends on its own. Stop is
	// idempotent.
	defer func() { _ = s.source.Stop() }()

	ticker := time.NewTicker(cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
		}

		frame, ok := s.source.Frame()
		if !ok || frame.Bounds().Empty() {
			continue
		}

		encoded, err := encodeFrame(frame, cfg.JPEGQuality)
		if err != nil {
			events.SessionError(domain.ErrorCodeVideoStream, fmt.Sprintf("failed to encode frame: %v", err))
			continue
		}

		chunk := domain.MediaChunk{
			MIMEType: domain.VideoFrameMIMEType,
			Data:     base64.StdEncoding.EncodeToString(encoded),
		}
		if sendErr := session.SendRealtimeInput([]domain.MediaChunk{chunk}); sendErr != nil {
			if !errors.Is(sendErr, ports.ErrSessionClosed) {
				events.SessionError(domain.ErrorCodeVideoStream, fmt.Sprintf("failed to stream frame: %v", sendErr))
			}
			return
		}
	}
}

func (s *videoSampler) stop() {
	close(s.closing)
	<-s.done
	_ = s.source.Stop()
}

// encodeFrame scales each dimension down to a quarter before JPEG encoding
// to keep the per-frame payload small.
func encodeFrame(frame image.Image, quality int) ([]byte, error) {
	scaled := downscale(frame)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx() / 4
	h := bounds.Dy() / 4
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
