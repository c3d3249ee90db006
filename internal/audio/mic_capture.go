package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"tutorcast/internal/ports"
)

const (
	// startupGrace is how long ffmpeg gets to fail fast on a bad or denied
	// device before the session is considered started.
	startupGrace = 250 * time.Millisecond

	// stopGrace is how long a session waits for ffmpeg to honor SIGINT
	// before killing it.
	stopGrace = 1200 * time.Millisecond
)

// MicCapture streams microphone PCM audio using an ffmpeg subprocess.
type MicCapture struct {
	command string
}

func NewMicCapture(command string) *MicCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &MicCapture{command: command}
}

func recorderArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// Start opens the microphone and returns a session whose Read yields raw
// s16le PCM at the configured rate. Device open failures are wrapped with
// ports.ErrDeviceUnavailable so callers can force the muted state.
func (c *MicCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, recorderArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: could not launch recorder: %v", ports.ErrDeviceUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A recorder that dies within the grace window never opened the device.
	startup := time.NewTimer(startupGrace)
	defer startup.Stop()
	select {
	case err := <-waitErr:
		detail := stderrDetail(&stderr)
		if err != nil {
			return nil, fmt.Errorf("%w: recorder died on startup (%v): %s", ports.ErrDeviceUnavailable, err, detail)
		}
		return nil, fmt.Errorf("%w: recorder quit without capturing: %s", ports.ErrDeviceUnavailable, detail)
	case <-startup.C:
	}

	return &micSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type micSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *micSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *micSession) Close() error {
	return s.Stop()
}

func (s *micSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.shutdown()
	})
	return s.stopErr
}

// shutdown interrupts the recorder, escalating to a kill when it does not
// exit within stopGrace.
func (s *micSession) shutdown() error {
	if s.process != nil {
		_ = s.process.Signal(os.Interrupt)
	}

	var err error
	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	select {
	case waitErr, ok := <-s.waitErr:
		if ok {
			err = normalizeStopErr(waitErr)
		}
	case <-grace.C:
		if s.process != nil {
			_ = s.process.Kill()
		}
		if waitErr, ok := <-s.waitErr; ok {
			err = normalizeStopErr(waitErr)
		}
	}

	if closeErr := s.stdout.Close(); err == nil && closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		err = closeErr
	}

	if err != nil {
		if detail := stderrDetail(s.stderr); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
	}
	return err
}

// A recorder killed on stop reports a nonzero exit; that is expected teardown.
func normalizeStopErr(err error) error {
	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
		return nil
	default:
		return err
	}
}

func stderrDetail(buf *bytes.Buffer) string {
	if buf == nil {
		return ""
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}
