package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"tutorcast/internal/bootstrap"
	"tutorcast/internal/config"
	"tutorcast/internal/domain"
	"tutorcast/internal/staging"
	"tutorcast/internal/usecase"
)

const (
	eventSession = "tutorcast:session"
	eventPartial = "tutorcast:partial"
	eventTurn    = "tutorcast:turn"
	eventVolume  = "tutorcast:volume"
	eventError   = "tutorcast:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	coordinator *usecase.Coordinator
	uploads     *staging.Store
	cfg         config.Config
	bootErr     error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.coordinator = services.Coordinator
	a.uploads = services.Uploads
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonStartup)
}

// UploadedImage is the upload payload echoed back to the frontend.
type UploadedImage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// UploadImage stages an image for the next solve. Data is base64 without a
// data-URL prefix.
func (a *App) UploadImage(name, mimeType, data string) (UploadedImage, error) {
	if err := a.requireReady(); err != nil {
		return UploadedImage{}, err
	}
	img, err := a.uploads.Add(name, mimeType, data)
	if err != nil {
		a.SessionError(domain.ErrorCodeUpload, err.Error())
		return UploadedImage{}, err
	}
	return UploadedImage{ID: img.ID, Name: img.Name, MIMEType: img.MIMEType}, nil
}

// RemoveImage drops one staged image.
func (a *App) RemoveImage(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.uploads.Remove(id)
	return nil
}

// ClearImages drops all staged images.
func (a *App) ClearImages() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.uploads.Clear()
	return nil
}

// ListImages returns the staged images, oldest first.
func (a *App) ListImages() ([]UploadedImage, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	all := a.uploads.All()
	out := make([]UploadedImage, 0, len(all))
	for _, img := range all {
		out = append(out, UploadedImage{ID: img.ID, Name: img.Name, MIMEType: img.MIMEType})
	}
	return out, nil
}

// Solve runs the one-shot solver over the staged images and returns the
// solution text. A successful solve makes Connect available.
func (a *App) Solve(question string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.coordinator.Solve(a.ctx, a.uploads.InlineData(), question)
}

// Connect opens a live tutoring session seeded with the solved context.
func (a *App) Connect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.coordinator.Connect(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.coordinator.Status(), nil
}

// Disconnect tears down the live session.
func (a *App) Disconnect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.coordinator.Disconnect()
	return a.coordinator.Status(), nil
}

// SetMuted toggles microphone streaming.
func (a *App) SetMuted(muted bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.coordinator.SetMuted(muted)
	return a.coordinator.Status(), nil
}

// SetVideoSource switches frame sampling to "none", "webcam", or "screen".
func (a *App) SetVideoSource(kind string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.coordinator.SetVideoSource(domain.VideoSourceKind(kind)); err != nil {
		return domain.Status{}, err
	}
	return a.coordinator.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.coordinator == nil {
		status := domain.Status{State: domain.SessionStateIdle, VideoSource: domain.VideoSourceNone}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.coordinator.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Gemini",
		"liveModel":        a.cfg.Gemini.LiveModel,
		"solverModel":      a.cfg.Gemini.SolverModel,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"webcamDevice":     a.cfg.Video.WebcamDevice,
		"screenDevice":     a.cfg.Video.ScreenDevice,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.coordinator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTurn emits the text accumulated so far in the current model turn.
func (a *App) PartialTurn(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// TurnComplete emits a finished model turn.
func (a *App) TurnComplete(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurn, map[string]string{"text": text})
}

// InputVolume emits the smoothed microphone level for the UI meter.
func (a *App) InputVolume(level float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventVolume, map[string]float64{"level": level})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonStartup:
		return "Ready to upload a question"
	case domain.SessionReasonContextReady:
		return "Solution ready. You can start a live session"
	case domain.SessionReasonConnected:
		return "Live session connected"
	case domain.SessionReasonReconnected:
		return "Live session reconnected; previous session discarded"
	case domain.SessionReasonDisconnected:
		return "Live session ended"
	case domain.SessionReasonConnectionClosed:
		return "Connection closed by the server"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeConnect:
		return "Connection failed"
	case domain.ErrorCodeSend:
		return "Failed to send to the live session"
	case domain.ErrorCodeAudioDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeVideoDevice:
		return "Video source unavailable"
	case domain.ErrorCodeVideoStream:
		return "Video streaming issue"
	case domain.ErrorCodeSolver:
		return "Solving failed"
	case domain.ErrorCodeUpload:
		return "Image upload rejected"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
