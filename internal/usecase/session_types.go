package usecase

import (
	"context"
	"sync"

	"tutorcast/internal/ports"
)

// liveState tracks one connected session and the capture pipelines feeding it.
type liveState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session ports.LiveSession

	turnsDone chan struct{}

	mu    sync.Mutex
	audio *audioPipeline
	video *videoSampler
}

func (l *liveState) setAudio(p *audioPipeline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audio = p
}

func (l *liveState) takeAudio() *audioPipeline {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.audio
	l.audio = nil
	return p
}

func (l *liveState) hasAudio() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audio != nil
}

func (l *liveState) setVideo(s *videoSampler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.video = s
}

func (l *liveState) takeVideo() *videoSampler {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.video
	l.video = nil
	return s
}

func (l *liveState) stopPipelines() {
	if p := l.takeAudio(); p != nil {
		p.stop()
	}
	if s := l.takeVideo(); s != nil {
		s.stop()
	}
	l.cancel()
}
