package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

var (
	ErrNoContext     = errors.New("no solved context to present")
	ErrNoImages      = errors.New("at least one image is required")
	ErrUnknownSource = errors.New("unknown video source")
)

// The live session has no memory of the one-shot solve, so the solution is
// replayed as the opening turn of every connection.
const contextPromptTemplate = "User has sent you a question; use the provided solution to answer it. " +
	"The original question is also given as image input to you. " +
	"Before starting to solve the problem, ask the user if he/she has any specific questions about the problem. " +
	"Solution: %s"

// Config controls session, capture, and streaming behavior.
type Config struct {
	Session        domain.SessionConfig
	Audio          ports.AudioConfig
	Webcam         ports.VideoConfig
	Screen         ports.VideoConfig
	ChunkSize      int
	SampleInterval time.Duration
	JPEGQuality    int
	VolumeInterval time.Duration
}

// Coordinator orchestrates the solve-then-present flow: a one-shot solver
// call stages context, and each connect opens a live session seeded with
// that context plus streamed mic audio and sampled video frames.
type Coordinator struct {
	client ports.LiveClient
	solver ports.Solver
	audio  ports.AudioCapture
	video  ports.VideoCapture
	events ports.EventSink
	cfg    Config

	mu          sync.Mutex
	state       domain.SessionState
	muted       bool
	videoSource domain.VideoSourceKind
	pending     *domain.ContextPayload
	live        *liveState
}

func NewCoordinator(
	client ports.LiveClient,
	solver ports.Solver,
	audio ports.AudioCapture,
	video ports.VideoCapture,
	events ports.EventSink,
	cfg Config,
) *Coordinator {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}
	return &Coordinator{
		client:      client,
		solver:      solver,
		audio:       audio,
		video:       video,
		events:      events,
		cfg:         cfg,
		state:       domain.SessionStateIdle,
		videoSource: domain.VideoSourceNone,
	}
}

// Solve runs the one-shot solver over the staged images and stores the
// result as the session context. The first image is kept so the model sees
// the original question alongside the solution.
func (c *Coordinator) Solve(ctx context.Context, images []domain.InlineData, question string) (string, error) {
	if len(images) == 0 {
		return "", ErrNoImages
	}

	content, err := c.solver.Solve(ctx, images, question)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeSolver, err.Error())
		return "", err
	}

	img := images[0]
	payload := domain.ContextPayload{
		Content:   content,
		Image:     &img,
		Timestamp: time.Now().UnixMilli(),
	}

	c.mu.Lock()
	c.pending = &payload
	becameReady := c.state == domain.SessionStateIdle
	if becameReady {
		c.state = domain.SessionStateReady
	}
	c.mu.Unlock()

	if becameReady {
		c.events.SessionStateChanged(domain.SessionStateReady, domain.SessionReasonContextReady)
	}
	return content, nil
}

// Connect opens a live session, injects the staged context as the opening
// turn, and starts the capture pipelines. Any previous session is torn down
// first.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.mu.Lock()
	payload := c.pending
	if payload == nil {
		c.mu.Unlock()
		return ErrNoContext
	}
	previous := c.live
	c.live = nil
	c.mu.Unlock()

	if previous != nil {
		c.teardown(previous)
	}

	session, err := c.client.Connect(ctx, c.cfg.Session)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeConnect, err.Error())
		c.restoreReady()
		return err
	}

	// The context turn goes out before any media so the model has the
	// solution in hand when audio starts arriving.
	if err := session.SendContent(contextParts(payload), true); err != nil {
		_ = session.Close()
		c.events.SessionError(domain.ErrorCodeSend, fmt.Sprintf("failed to inject context: %v", err))
		c.restoreReady()
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	active := &liveState{
		ctx:       sessionCtx,
		cancel:    cancel,
		session:   session,
		turnsDone: make(chan struct{}),
	}
	go consumeFragments(session, c.events, active.turnsDone)

	c.mu.Lock()
	c.live = active
	c.state = domain.SessionStateLive
	muted := c.muted
	source := c.videoSource
	c.mu.Unlock()

	go func() {
		<-session.Done()
		c.handleSessionClosed(active)
	}()

	if !muted {
		c.startAudio(active)
	}
	if source != domain.VideoSourceNone {
		c.startVideo(active, source)
	}

	reason := domain.SessionReasonConnected
	if previous != nil {
		reason = domain.SessionReasonReconnected
	}
	c.events.SessionStateChanged(domain.SessionStateLive, reason)
	return nil
}

// Disconnect tears down the live session. Calling it without a session is a
// no-op.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	active := c.live
	c.live = nil
	if active != nil {
		c.state = domain.SessionStateReady
	}
	c.mu.Unlock()

	if active == nil {
		return
	}
	c.teardown(active)
	c.events.SessionStateChanged(domain.SessionStateReady, domain.SessionReasonDisconnected)
}

// SetMuted toggles the microphone pipeline. Unmuting on a live session
// restarts capture; a device failure forces the mute back on.
func (c *Coordinator) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	active := c.live
	c.mu.Unlock()

	if active == nil {
		return
	}
	if muted {
		if p := active.takeAudio(); p != nil {
			p.stop()
		}
		return
	}
	if active.hasAudio() {
		return
	}
	c.startAudio(active)
}

// SetVideoSource switches the frame sampler to the given source. The old
// sampler is always stopped before the new one starts.
func (c *Coordinator) SetVideoSource(kind domain.VideoSourceKind) error {
	if _, err := c.videoConfigFor(kind); err != nil {
		return err
	}

	c.mu.Lock()
	c.videoSource = kind
	active := c.live
	c.mu.Unlock()

	if active == nil {
		return nil
	}
	if s := active.takeVideo(); s != nil {
		s.stop()
	}
	if kind == domain.VideoSourceNone {
		return nil
	}
	return c.startVideo(active, kind)
}

// Status reports the current backend status.
func (c *Coordinator) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:       c.state,
		Connected:   c.live != nil,
		Muted:       c.muted,
		VideoSource: c.videoSource,
		HasContext:  c.pending != nil,
	}
}

func (c *Coordinator) startAudio(active *liveState) {
	audioSession, err := c.audio.Start(active.ctx, c.cfg.Audio)
	if err != nil {
		c.mu.Lock()
		c.muted = true
		c.mu.Unlock()
		code := domain.ErrorCodeAudioStream
		if errors.Is(err, ports.ErrDeviceUnavailable) {
			code = domain.ErrorCodeAudioDevice
		}
		c.events.SessionError(code, err.Error())
		return
	}

	// The device open can outlast the session it was started for. Check the
	// pipeline is still wanted before pumping into a dead or replaced session.
	c.mu.Lock()
	wanted := c.live == active && !c.muted
	c.mu.Unlock()
	if !wanted {
		_ = audioSession.Stop()
		return
	}

	pipeline := startAudioPipeline(audioSession, active.session, audioPipelineConfig{
		ChunkSize:      c.cfg.ChunkSize,
		VolumeInterval: c.cfg.VolumeInterval,
	}, c.events)
	active.setAudio(pipeline)
}

func (c *Coordinator) startVideo(active *liveState, kind domain.VideoSourceKind) error {
	cfg, err := c.videoConfigFor(kind)
	if err != nil {
		return err
	}

	source, err := c.video.Start(active.ctx, cfg)
	if err != nil {
		c.mu.Lock()
		c.videoSource = domain.VideoSourceNone
		c.mu.Unlock()
		code := domain.ErrorCodeVideoStream
		if errors.Is(err, ports.ErrDeviceUnavailable) {
			code = domain.ErrorCodeVideoDevice
		}
		c.events.SessionError(code, err.Error())
		return err
	}

	c.mu.Lock()
	wanted := c.live == active && c.videoSource == kind
	c.mu.Unlock()
	if !wanted {
		_ = source.Stop()
		return nil
	}

	sampler := startVideoSampler(source, active.session, videoSamplerConfig{
		SampleInterval: c.cfg.SampleInterval,
		JPEGQuality:    c.cfg.JPEGQuality,
	}, c.events)
	active.setVideo(sampler)
	return nil
}

func (c *Coordinator) videoConfigFor(kind domain.VideoSourceKind) (ports.VideoConfig, error) {
	switch kind {
	case domain.VideoSourceNone:
		return ports.VideoConfig{}, nil
	case domain.VideoSourceWebcam:
		return c.cfg.Webcam, nil
	case domain.VideoSourceScreen:
		return c.cfg.Screen, nil
	default:
		return ports.VideoConfig{}, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

func (c *Coordinator) teardown(active *liveState) {
	active.stopPipelines()
	_ = active.session.Close()
	<-active.turnsDone
}

// handleSessionClosed runs when the transport shuts down underneath us,
// whether remotely or via teardown. Only the current session transitions
// state; a session already replaced or disconnected is ignored.
func (c *Coordinator) handleSessionClosed(active *liveState) {
	c.mu.Lock()
	if c.live != active {
		c.mu.Unlock()
		return
	}
	c.live = nil
	c.state = domain.SessionStateReady
	c.mu.Unlock()

	c.teardown(active)
	if err := active.session.Err(); err != nil {
		c.events.SessionError(domain.ErrorCodeConnect, err.Error())
	}
	c.events.SessionStateChanged(domain.SessionStateReady, domain.SessionReasonConnectionClosed)
}

// restoreReady puts the state machine back to Ready after a failed connect.
func (c *Coordinator) restoreReady() {
	c.mu.Lock()
	c.state = domain.SessionStateReady
	c.mu.Unlock()
}

func contextParts(payload *domain.ContextPayload) []domain.Part {
	parts := []domain.Part{{Text: fmt.Sprintf(contextPromptTemplate, payload.Content)}}
	if payload.Image != nil {
		parts = append(parts, domain.Part{Inline: payload.Image})
	}
	return parts
}
