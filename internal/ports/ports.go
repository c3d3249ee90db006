package ports

import (
	"context"
	"errors"
	"image"
	"io"

	"tutorcast/internal/domain"
)

// ErrSessionClosed is returned by sends on a live session that has closed.
// Capture loops must treat it as a stop signal, never as a panic.
var ErrSessionClosed = errors.New("live session is closed")

// ErrDeviceUnavailable wraps capture-device open failures (denied or busy).
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture session producing raw PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// VideoConfig describes a video capture input (webcam or screen grab).
type VideoConfig struct {
	InputFormat string
	InputDevice string
	FrameRate   int
}

// VideoSource exposes the most recent decoded frame of an active capture.
// Frame reports false until the first frame has been decoded.
type VideoSource interface {
	Frame() (image.Image, bool)
	Stop() error
}

// VideoCapture creates video capture sources. Exactly one source may be
// active per capture at a time; callers stop the old source before starting
// the next.
type VideoCapture interface {
	Start(ctx context.Context, cfg VideoConfig) (VideoSource, error)
}

// LiveSession is an open bidirectional session with the model backend.
type LiveSession interface {
	// SendContent serializes parts into one ordered content message.
	SendContent(parts []domain.Part, turnComplete bool) error
	// SendRealtimeInput is the fire-and-forget variant for high-frequency media.
	SendRealtimeInput(chunks []domain.MediaChunk) error
	// Fragments yields decoded inbound model output until the session ends.
	Fragments() <-chan domain.InboundFragment
	// Done is closed once the session has fully shut down.
	Done() <-chan struct{}
	// Err returns the terminal session error, if any, after Done.
	Err() error
	Close() error
}

// LiveClient opens live sessions against the model backend.
type LiveClient interface {
	Connect(ctx context.Context, cfg domain.SessionConfig) (LiveSession, error)
}

// Solver performs the stateless one-shot image-to-solution request.
type Solver interface {
	Solve(ctx context.Context, images []domain.InlineData, question string) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTurn(text string)
	TurnComplete(text string)
	InputVolume(level float64)
	SessionError(code domain.ErrorCode, detail string)
}
