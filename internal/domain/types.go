package domain

// SessionState models the tutoring session lifecycle.
type SessionState string

const (
	// SessionStateIdle means no solved context exists yet; connect is unavailable.
	SessionStateIdle SessionState = "idle"
	// SessionStateReady means a solved context is staged and the session can connect.
	SessionStateReady SessionState = "ready"
	// SessionStateLive means the bidirectional session is connected.
	SessionStateLive SessionState = "live"
)

// ConnectionState is the transport's own lifecycle, separate from the session
// state machine which only observes a derived connected boolean.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionClosing      ConnectionState = "closing"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStartup          SessionStateReason = "startup"
	SessionReasonContextReady     SessionStateReason = "context_ready"
	SessionReasonConnected        SessionStateReason = "connected"
	SessionReasonReconnected      SessionStateReason = "reconnected"
	SessionReasonDisconnected     SessionStateReason = "disconnected"
	SessionReasonConnectionClosed SessionStateReason = "connection_closed"
)

// ErrorCode identifies non-fatal backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeConnect     ErrorCode = "connect"
	ErrorCodeSend        ErrorCode = "send"
	ErrorCodeAudioDevice ErrorCode = "audio_device"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeVideoDevice ErrorCode = "video_device"
	ErrorCodeVideoStream ErrorCode = "video_stream"
	ErrorCodeSolver      ErrorCode = "solver"
	ErrorCodeUpload      ErrorCode = "upload"
)

// InlineData is a base64-encoded media payload with its MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of an outbound content message: text or inline media.
type Part struct {
	Text   string      `json:"text,omitempty"`
	Inline *InlineData `json:"inlineData,omitempty"`
}

// MediaChunk is a realtime media item (an audio chunk or a video frame) sent
// outside the structured turn flow.
type MediaChunk = InlineData

const (
	AudioChunkMIMEType = "audio/pcm;rate=16000"
	VideoFrameMIMEType = "image/jpeg"
)

// ContextPayload carries the one-shot solver result that seeds a live session.
// Produced by the solver flow, injected at most once per connect edge.
type ContextPayload struct {
	Content   string      `json:"content"`
	Image     *InlineData `json:"image,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// FragmentKind distinguishes incremental model output from the turn boundary.
type FragmentKind string

const (
	FragmentKindModelTurnPart FragmentKind = "model_turn_part"
	FragmentKindTurnComplete  FragmentKind = "turn_complete"
)

// InboundFragment is one decoded unit of streamed model output.
type InboundFragment struct {
	Kind FragmentKind
	Text string
}

// SessionConfig is the immutable per-connection configuration sent as the
// transport's first control message.
type SessionConfig struct {
	Model              string
	ResponseModalities []string
	SystemInstruction  string
}

// VideoSourceKind selects which capture source feeds the frame sampler.
type VideoSourceKind string

const (
	VideoSourceNone   VideoSourceKind = "none"
	VideoSourceWebcam VideoSourceKind = "webcam"
	VideoSourceScreen VideoSourceKind = "screen"
)

// Status summarizes the current runtime status for the UI.
type Status struct {
	State       SessionState    `json:"state"`
	Connected   bool            `json:"connected"`
	Muted       bool            `json:"muted"`
	VideoSource VideoSourceKind `json:"videoSource"`
	HasContext  bool            `json:"hasContext"`
	Message     string          `json:"message,omitempty"`
}
