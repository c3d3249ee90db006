package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

type sentContent struct {
	parts        []domain.Part
	turnComplete bool
}

type fakeLiveSession struct {
	mu          sync.Mutex
	fragments   chan domain.InboundFragment
	done        chan struct{}
	err         error
	closed      bool
	contents    []sentContent
	chunks      []domain.MediaChunk
	contentErr  error
	realtimeErr error
	closeCalls  int
}

func newFakeLiveSession() *fakeLiveSession {
	return &fakeLiveSession{
		fragments: make(chan domain.InboundFragment, 16),
		done:      make(chan struct{}),
	}
}

func (f *fakeLiveSession) SendContent(parts []domain.Part, turnComplete bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contentErr != nil {
		return f.contentErr
	}
	if f.closed {
		return ports.ErrSessionClosed
	}
	f.contents = append(f.contents, sentContent{parts: parts, turnComplete: turnComplete})
	return nil
}

func (f *fakeLiveSession) SendRealtimeInput(chunks []domain.MediaChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.realtimeErr != nil {
		return f.realtimeErr
	}
	if f.closed {
		return ports.ErrSessionClosed
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeLiveSession) Fragments() <-chan domain.InboundFragment { return f.fragments }

func (f *fakeLiveSession) Done() <-chan struct{} { return f.done }

func (f *fakeLiveSession) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeLiveSession) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	f.terminate(nil)
	return nil
}

// terminate ends the session the way a remote close would.
func (f *fakeLiveSession) terminate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.err = err
	close(f.fragments)
	close(f.done)
}

func (f *fakeLiveSession) sentContents() []sentContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentContent, len(f.contents))
	copy(out, f.contents)
	return out
}

func (f *fakeLiveSession) sentChunks() []domain.MediaChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MediaChunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

func (f *fakeLiveSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeLiveClient struct {
	mu       sync.Mutex
	sessions []*fakeLiveSession
	err      error
	calls    int
}

func (f *fakeLiveClient) Connect(_ context.Context, _ domain.SessionConfig) (ports.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no live session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeSolver struct {
	mu        sync.Mutex
	content   string
	err       error
	questions []string
	images    [][]domain.InlineData
}

func (f *fakeSolver) Solve(_ context.Context, images []domain.InlineData, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.questions = append(f.questions, question)
	f.images = append(f.images, images)
	return f.content, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopped   chan struct{}
	stopOnce  sync.Once
	stopCalls int
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeVideoSource struct {
	mu        sync.Mutex
	frame     image.Image
	ok        bool
	stopCalls int
}

func (f *fakeVideoSource) Frame() (image.Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.ok
}

func (f *fakeVideoSource) setFrame(frame image.Image, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	f.ok = ok
}

func (f *fakeVideoSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeVideoSource) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeVideoCapture struct {
	mu      sync.Mutex
	sources []*fakeVideoSource
	err     error
	calls   int
	configs []ports.VideoConfig
}

func (f *fakeVideoCapture) Start(_ context.Context, cfg ports.VideoConfig) (ports.VideoSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sources) {
		return nil, errors.New("no video source configured")
	}
	source := f.sources[f.calls]
	f.calls++
	f.configs = append(f.configs, cfg)
	return source, nil
}

func (f *fakeVideoCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeVideoCapture) startedConfigs() []ports.VideoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.VideoConfig, len(f.configs))
	copy(out, f.configs)
	return out
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	partials  []string
	completes []string
	volumes   []float64
	errors    []errEvent
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) PartialTurn(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) TurnComplete(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, text)
}

func (f *fakeEventSink) InputVolume(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, level)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotPartials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.partials))
	copy(out, f.partials)
	return out
}

func (f *fakeEventSink) snapshotCompletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.completes))
	copy(out, f.completes)
	return out
}

func (f *fakeEventSink) snapshotVolumes() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.volumes))
	copy(out, f.volumes)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
