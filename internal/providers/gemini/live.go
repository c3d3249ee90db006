package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

const defaultConnectTimeout = 15 * time.Second

// Config controls Gemini Live websocket settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// Client implements ports.LiveClient for the Gemini BidiGenerateContent API.
type Client struct {
	cfg Config
	log zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Client{cfg: cfg, log: cfg.Logger}
}

// Connect dials the live endpoint, sends the setup message, and waits for the
// backend to acknowledge it. The returned session is live once Connect returns.
func (c *Client) Connect(ctx context.Context, cfg domain.SessionConfig) (ports.LiveSession, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}

	wsURL, err := buildLiveURL(c.cfg.BaseURL, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini live websocket: %w", err)
	}

	if err := conn.WriteJSON(buildSetupEnvelope(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send session setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setup was not acknowledged: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	ack, err := decodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !ack.setupComplete {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first live frame: %s", payload)
	}

	session := &liveSession{
		conn:      conn,
		log:       c.log,
		outbound:  make(chan []byte, 64),
		fragments: make(chan domain.InboundFragment, 64),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	session.state.Store(string(domain.ConnectionConnected))

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		session.state.Store(string(domain.ConnectionDisconnected))
		close(session.fragments)
		close(session.done)
		_ = conn.Close()
	}()

	return session, nil
}

type liveSession struct {
	conn *websocket.Conn
	log  zerolog.Logger

	outbound  chan []byte
	fragments chan domain.InboundFragment
	closing   chan struct{}
	done      chan struct{}
	state     atomic.Value // domain.ConnectionState as string

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closingOnce sync.Once
	sendOnce    sync.Once
	sendMu      sync.RWMutex
	sendClosed  bool
}

func (s *liveSession) SendContent(parts []domain.Part, turnComplete bool) error {
	envelope := clientContentEnvelope{
		ClientContent: clientContentPayload{
			Turns: []wireContent{{
				Role:  "user",
				Parts: toWireParts(parts),
			}},
			TurnComplete: turnComplete,
		},
	}
	return s.enqueue(envelope)
}

func (s *liveSession) SendRealtimeInput(chunks []domain.MediaChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	envelope := realtimeInputEnvelope{
		RealtimeInput: realtimeInputPayload{MediaChunks: toWireChunks(chunks)},
	}
	return s.enqueue(envelope)
}

func (s *liveSession) enqueue(envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode outbound message: %w", err)
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return ports.ErrSessionClosed
	}

	select {
	case s.outbound <- data:
		return nil
	case <-s.closing:
		return ports.ErrSessionClosed
	}
}

func (s *liveSession) Fragments() <-chan domain.InboundFragment {
	return s.fragments
}

func (s *liveSession) Done() <-chan struct{} {
	return s.done
}

// State reports the transport lifecycle, independent of the coordinator's
// session states.
func (s *liveSession) State() domain.ConnectionState {
	v, _ := s.state.Load().(string)
	if v == "" {
		return domain.ConnectionDisconnected
	}
	return domain.ConnectionState(v)
}

func (s *liveSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) Close() error {
	s.signalClosing()
	s.shutdownSend()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second),
	)
	_ = s.conn.Close()
	<-s.done
	return s.Err()
}

func (s *liveSession) signalClosing() {
	s.closingOnce.Do(func() {
		s.state.CompareAndSwap(string(domain.ConnectionConnected), string(domain.ConnectionClosing))
		close(s.closing)
	})
}

// shutdownSend must only run after signalClosing, so that a sender blocked in
// enqueue is released before the outbound channel closes under it.
func (s *liveSession) shutdownSend() {
	s.sendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.outbound)
		s.sendMu.Unlock()
	})
}

func (s *liveSession) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	for data := range s.outbound {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.setErr(fmt.Errorf("failed to send message: %w", err))
			s.signalClosing()
			_ = s.conn.Close()
			return
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()
	defer s.shutdownSend()
	defer s.signalClosing()

	for {
		// The backend delivers JSON in both text and binary frames.
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read server frame: %w", err))
			return
		}

		msg, err := decodeServerMessage(payload)
		if err != nil {
			s.log.Debug().Err(err).Msg("skipping undecodable live frame")
			continue
		}

		if msg.toolCall {
			s.log.Debug().Msg("ignoring tool call frame")
		}
		if msg.interrupted {
			s.log.Debug().Msg("model turn interrupted")
		}

		for _, fragment := range msg.fragments {
			select {
			case s.fragments <- fragment:
			case <-s.closing:
				return
			}
		}
	}
}

func buildLiveURL(base, apiKey string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	liveURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid live base URL: %w", err)
	}
	if liveURL.Scheme != "ws" && liveURL.Scheme != "wss" {
		return "", fmt.Errorf("live base URL must use ws(s) or http(s): %s", base)
	}

	query := liveURL.Query()
	query.Set("key", apiKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}
