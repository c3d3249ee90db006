package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"tutorcast/internal/ports"
)

const startupGrace = 250 * time.Millisecond

// FrameCapture streams webcam or screen frames as MJPEG using an ffmpeg
// subprocess and keeps only the most recently decoded frame.
type FrameCapture struct {
	command string
}

func NewFrameCapture(command string) *FrameCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FrameCapture{command: command}
}

// Start opens the capture input and returns a source whose Frame yields the
// latest decoded image. Device open failures are wrapped with
// ports.ErrDeviceUnavailable.
func (c *FrameCapture) Start(ctx context.Context, cfg ports.VideoConfig) (ports.VideoSource, error) {
	if cfg.InputFormat == "" {
		return nil, errors.New("video input format is required")
	}
	if cfg.InputDevice == "" {
		return nil, errors.New("video input device is required")
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 5
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-i", cfg.InputDevice,
		"-f", "mjpeg",
		"-q:v", "5",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create grabber stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start grabber: %v", ports.ErrDeviceUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := string(bytes.TrimSpace(stderr.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("%w: grabber exited: %v: %s", ports.ErrDeviceUnavailable, err, detail)
		}
		return nil, fmt.Errorf("%w: grabber exited before capture started: %s", ports.ErrDeviceUnavailable, detail)
	case <-time.After(startupGrace):
	}

	source := &frameSource{
		stdout:     stdout,
		process:    cmd.Process,
		waitErr:    waitErr,
		decodeDone: make(chan struct{}),
	}
	go source.decodeLoop()
	return source, nil
}

type frameSource struct {
	stdout  io.ReadCloser
	process *os.Process
	waitErr <-chan error

	decodeDone chan struct{}

	mu    sync.Mutex
	frame image.Image

	stopOnce sync.Once
	stopErr  error
}

// Frame returns the latest decoded frame; false until one has arrived.
func (s *frameSource) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

func (s *frameSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		_ = s.stdout.Close()
		<-s.decodeDone
	})

	return s.stopErr
}

func (s *frameSource) decodeLoop() {
	defer close(s.decodeDone)

	reader := bufio.NewReaderSize(s.stdout, 1<<16)
	for {
		raw, err := readJPEGFrame(reader)
		if err != nil {
			return
		}
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.frame = img
		s.mu.Unlock()
	}
}

// readJPEGFrame extracts one JPEG image from a concatenated MJPEG stream by
// scanning for the SOI/EOI markers.
func readJPEGFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		next, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if next == 0xD8 {
			break
		}
		if next == 0xFF {
			_ = r.UnreadByte()
		}
	}

	frame := []byte{0xFF, 0xD8}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame = append(frame, b)
		if b != 0xFF {
			continue
		}
		next, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame = append(frame, next)
		if next == 0xD9 {
			return frame, nil
		}
	}
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
