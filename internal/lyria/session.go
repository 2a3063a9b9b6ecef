package lyria

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultModel is the realtime music generation model.
	DefaultModel = "models/lyria-realtime-exp"

	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateMusic"

	defaultSetupTimeout = 15 * time.Second
)

// Callbacks receive session events. OnMessage fires for every inbound
// frame; OnError fires on transport failure; OnClose fires when the
// remote closes the connection. A close initiated locally via Close
// fires neither.
type Callbacks struct {
	OnMessage func(*ServerMessage)
	OnError   func(error)
	OnClose   func()
}

// MusicSession is the session surface the player consumes. *Session
// implements it over the live websocket; tests substitute fakes.
type MusicSession interface {
	SetWeightedPrompts(ctx context.Context, prompts []WeightedPrompt) error
	SetMusicGenerationConfig(ctx context.Context, cfg GenerationConfig) error
	ResetContext(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Close() error
}

// Dialer opens realtime music sessions.
type Dialer struct {
	APIKey       string
	Model        string        // defaults to DefaultModel
	Endpoint     string        // defaults to the v1alpha bidi endpoint
	SetupTimeout time.Duration // max wait for the server's setupComplete
}

// Connect dials the service, sends the setup frame, and blocks until
// the server acknowledges with setupComplete. Callbacks are registered
// before any frame can arrive, so no message is lost. Prompts and
// config must not be sent before Connect returns.
func (d *Dialer) Connect(ctx context.Context, cb Callbacks) (*Session, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := d.Model
	if model == "" {
		model = DefaultModel
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", d.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial music session: %w", err)
	}

	s := &Session{
		conn:  conn,
		cb:    cb,
		setup: make(chan struct{}),
	}

	if err := s.write(ctx, clientMessage{Setup: &setupPayload{Model: model}}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	go s.readLoop()

	timeout := d.SetupTimeout
	if timeout == 0 {
		timeout = defaultSetupTimeout
	}
	select {
	case <-s.setup:
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("await setup: %w", ctx.Err())
	case <-time.After(timeout):
		s.Close()
		return nil, fmt.Errorf("await setup: no setupComplete within %s", timeout)
	}

	slog.Info("music session ready", "model", model)
	return s, nil
}

// Session is one live connection to the generation service.
type Session struct {
	conn *websocket.Conn
	cb   Callbacks

	writeMu sync.Mutex
	closed  atomic.Bool

	setupOnce sync.Once
	setup     chan struct{}
}

func (s *Session) readLoop() {
	for {
		var msg ServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if s.closed.Load() {
				return // local teardown, not an event
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if s.cb.OnClose != nil {
					s.cb.OnClose()
				}
				return
			}
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("session read: %w", err))
			}
			return
		}

		if msg.SetupComplete != nil {
			s.setupOnce.Do(func() { close(s.setup) })
		}
		if s.cb.OnMessage != nil {
			s.cb.OnMessage(&msg)
		}
	}
}

func (s *Session) write(ctx context.Context, msg clientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}
	return s.conn.WriteJSON(msg)
}

// SetWeightedPrompts replaces the active prompt set.
func (s *Session) SetWeightedPrompts(ctx context.Context, prompts []WeightedPrompt) error {
	err := s.write(ctx, clientMessage{ClientContent: &clientContent{WeightedPrompts: prompts}})
	if err != nil {
		return fmt.Errorf("set weighted prompts: %w", err)
	}
	return nil
}

// SetMusicGenerationConfig replaces the generation parameters.
func (s *Session) SetMusicGenerationConfig(ctx context.Context, cfg GenerationConfig) error {
	if err := s.write(ctx, clientMessage{MusicGenerationConfig: &cfg}); err != nil {
		return fmt.Errorf("set generation config: %w", err)
	}
	return nil
}

// ResetContext discards the server-side generation context. Required
// after drastic parameter changes (tempo or key) to avoid the model
// smearing across the boundary.
func (s *Session) ResetContext(ctx context.Context) error {
	return s.control(ctx, controlResetContext)
}

func (s *Session) Play(ctx context.Context) error  { return s.control(ctx, controlPlay) }
func (s *Session) Pause(ctx context.Context) error { return s.control(ctx, controlPause) }
func (s *Session) Stop(ctx context.Context) error  { return s.control(ctx, controlStop) }

func (s *Session) control(ctx context.Context, verb string) error {
	if err := s.write(ctx, clientMessage{PlaybackControl: verb}); err != nil {
		return fmt.Errorf("playback control %s: %w", verb, err)
	}
	return nil
}

// Close tears down the connection. Safe to call more than once; the
// read loop sees the closed flag and suppresses its callbacks.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
