package usecase

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

const (
	volumeDecay  = 0.7
	volumeAttack = 0.3
)

type audioPipelineConfig struct {
	ChunkSize      int
	VolumeInterval time.Duration
}

// audioPipeline streams captured PCM into the live session as base64 chunks
// and reports a smoothed input level.
type audioPipeline struct {
	audio ports.AudioSession
	done  chan struct{}
}

func startAudioPipeline(
	audio ports.AudioSession,
	session ports.LiveSession,
	cfg audioPipelineConfig,
	events ports.EventSink,
) *audioPipeline {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.VolumeInterval <= 0 {
		cfg.VolumeInterval = 100 * time.Millisecond
	}

	p := &audioPipeline{audio: audio, done: make(chan struct{})}
	go p.run(session, cfg, events)
	return p
}

func (p *audioPipeline) run(session ports.LiveSession, cfg audioPipelineConfig, events ports.EventSink) {
	defer close(p.done)
	defer events.InputVolume(0)
	// Release the device even when the pump ends on its own, for example
	// after the session closes underneath it. Stop is idempotent.
	defer func() { _ = p.audio.Stop() }()

	buf := make([]byte, cfg.ChunkSize)
	var volume float64
	var lastEmit time.Time

	for {
		n, err := p.audio.Read(buf)
		if n > 0 {
			volume = volume*volumeDecay + sampleRMS(buf[:n])*volumeAttack
			if now := time.Now(); now.Sub(lastEmit) >= cfg.VolumeInterval {
				events.InputVolume(volume)
				lastEmit = now
			}

			chunk := domain.MediaChunk{
				MIMEType: domain.AudioChunkMIMEType,
				Data:     base64.StdEncoding.EncodeToString(buf[:n]),
			}
			if sendErr := session.SendRealtimeInput([]domain.MediaChunk{chunk}); sendErr != nil {
				if !errors.Is(sendErr, ports.ErrSessionClosed) {
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				}
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func (p *audioPipeline) stop() {
	_ = p.audio.Stop()
	<-p.done
}

// sampleRMS computes the normalized RMS level of little-endian 16-bit PCM.
func sampleRMS(pcm []byte) float64 {
	count := len(pcm) / 2
	if count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum/float64(count)) / 32768
}
