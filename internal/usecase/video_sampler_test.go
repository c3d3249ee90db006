package usecase

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"tutorcast/internal/domain"
)

func testFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}
	return img
}

func TestVideoSamplerStreamsDownscaledFrames(t *testing.T) {
	t.Parallel()

	source := &fakeVideoSource{frame: testFrame(16, 12), ok: true}
	session := newFakeLiveSession()
	events := &fakeEventSink{}

	sampler := startVideoSampler(source, session, videoSamplerConfig{SampleInterval: 5 * time.Millisecond}, events)

	waitFor(t, "video chunk", func() bool {
		return len(session.sentChunks()) >= 1
	})
	sampler.stop()

	if source.stopCount() == 0 {
		t.Fatalf("expected source stopped with sampler")
	}

	chunk := session.sentChunks()[0]
	if chunk.MIMEType != domain.VideoFrameMIMEType {
		t.Fatalf("unexpected mime type: %q", chunk.MIMEType)
	}
	raw, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		t.Fatalf("chunk is not valid base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("chunk is not a decodable jpeg: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("expected quarter-size frame, got %v", img.Bounds())
	}

	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("unexpected error events: %+v", errs)
	}
}

func TestVideoSamplerSkipsAbsentFrames(t *testing.T) {
	t.Parallel()

	source := &fakeVideoSource{ok: false}
	session := newFakeLiveSession()
	events := &fakeEventSink{}

	sampler := startVideoSampler(source, session, videoSamplerConfig{SampleInterval: time.Millisecond}, events)
	time.Sleep(20 * time.Millisecond)
	sampler.stop()

	if got := session.sentChunks(); len(got) != 0 {
		t.Fatalf("expected no chunks without frames, got %d", len(got))
	}
	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("unexpected error events: %+v", errs)
	}
}

func TestVideoSamplerSkipsEmptyFramesAndRecovers(t *testing.T) {
	t.Parallel()

	source := &fakeVideoSource{frame: image.NewRGBA(image.Rect(0, 0, 0, 0)), ok: true}
	session := newFakeLiveSession()
	events := &fakeEventSink{}

	sampler := startVideoSampler(source, session, videoSamplerConfig{SampleInterval: time.Millisecond}, events)

	time.Sleep(20 * time.Millisecond)
	if got := session.sentChunks(); len(got) != 0 {
		t.Fatalf("expected no chunks for empty frames, got %d", len(got))
	}
	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("unexpected error events for empty frames: %+v", errs)
	}

	source.setFrame(testFrame(8, 8), true)
	waitFor(t, "chunk after real frame arrives", func() bool {
		return len(session.sentChunks()) >= 1
	})
	sampler.stop()
}

func TestVideoSamplerStopsWhenSessionClosed(t *testing.T) {
	t.Parallel()

	source := &fakeVideoSource{frame: testFrame(4, 4), ok: true}
	session := newFakeLiveSession()
	session.terminate(nil)
	events := &fakeEventSink{}

	sampler := startVideoSampler(source, session, videoSamplerConfig{SampleInterval: time.Millisecond}, events)

	select {
	case <-sampler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sampler did not stop after session close")
	}

	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("expected no error events for closed session, got %+v", errs)
	}
}

func TestDownscaleNeverProducesEmptyImage(t *testing.T) {
	t.Parallel()

	got := downscale(testFrame(1, 1))
	if got.Bounds().Dx() != 1 || got.Bounds().Dy() != 1 {
		t.Fatalf("unexpected bounds: %v", got.Bounds())
	}
}
