package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/annsts/underlay/internal/audio"
	"github.com/annsts/underlay/internal/lyria"
)

// ErrNoAPIKey is returned when playback is requested without a
// configured credential. No transport attempt is made.
var ErrNoAPIKey = errors.New("player: no API key configured")

// DialFunc opens a session with the given credential and callbacks and
// returns once the server has acknowledged setup.
type DialFunc func(ctx context.Context, apiKey string, cb lyria.Callbacks) (lyria.MusicSession, error)

// Output is the audio device the player drives: the scheduler places
// buffers on it and the player fades its master gain.
type Output interface {
	audio.Output
	FadeTo(gain float64, over time.Duration)
}

const (
	defaultLead           = 1800 * time.Millisecond
	defaultDebounce       = 2 * time.Second
	defaultSessionLimit   = 10 * time.Minute
	defaultReconnectDelay = time.Second
	defaultSampleRate     = 48000
	defaultChannels       = 2
)

// Player owns the playback lifecycle: the single live session handle,
// the chunk scheduler, the state machine, and all timers. All mutable
// cross-callback state lives behind its mutex.
type Player struct {
	dial           DialFunc
	out            Output
	sched          *audio.Scheduler
	countdown      *countdown
	debounceDelay  time.Duration
	reconnectDelay time.Duration

	mu            sync.Mutex
	apiKey        string
	sess          lyria.MusicSession
	connecting    chan struct{}
	state         State
	connected     bool
	autoReconnect bool
	layers        []Layer
	cfg           GlobalConfig
	lastBPM       int
	lastScale     lyria.Scale
	volume        int
	errNotice     string
	filterNotice  string
	debounce      *time.Timer
}

// Option adjusts player construction.
type Option func(*options)

type options struct {
	lead           time.Duration
	debounce       time.Duration
	sessionLimit   time.Duration
	reconnectDelay time.Duration
	sampleRate     int
	channels       int
}

func WithLead(d time.Duration) Option           { return func(o *options) { o.lead = d } }
func WithDebounce(d time.Duration) Option       { return func(o *options) { o.debounce = d } }
func WithSessionLimit(d time.Duration) Option   { return func(o *options) { o.sessionLimit = d } }
func WithReconnectDelay(d time.Duration) Option { return func(o *options) { o.reconnectDelay = d } }
func WithFormat(sampleRate, channels int) Option {
	return func(o *options) { o.sampleRate = sampleRate; o.channels = channels }
}

func New(dial DialFunc, out Output, opts ...Option) *Player {
	o := options{
		lead:           defaultLead,
		debounce:       defaultDebounce,
		sessionLimit:   defaultSessionLimit,
		reconnectDelay: defaultReconnectDelay,
		sampleRate:     defaultSampleRate,
		channels:       defaultChannels,
	}
	for _, fn := range opts {
		fn(&o)
	}

	p := &Player{
		dial:           dial,
		out:            out,
		debounceDelay:  o.debounce,
		reconnectDelay: o.reconnectDelay,
		state:          Stopped,
		autoReconnect:  true,
		volume:         80,
		cfg:            DefaultConfig(),
		layers: []Layer{
			{ID: "1", Text: "dreamy synth pads", Weight: 1.0, Enabled: true},
			{ID: "2", Text: "soft piano melody", Weight: 0.8, Enabled: true},
		},
	}
	p.sched = audio.NewScheduler(out, p, o.sampleRate, o.channels, o.lead)
	p.countdown = newCountdown(o.sessionLimit, p.onCountdownExpired)
	return p
}

// --- scheduler events ---

// Buffering satisfies audio.Events: the scheduler armed the lead
// horizon or detected starvation.
func (p *Player) Buffering() {
	p.mu.Lock()
	p.setStateLocked(Loading)
	p.mu.Unlock()
}

// Playing satisfies audio.Events: the first chunk's lead time elapsed.
func (p *Player) Playing() {
	p.mu.Lock()
	if p.state == Loading {
		p.setStateLocked(Playing)
	}
	p.connected = true
	p.mu.Unlock()
	p.countdown.Start()
}

func (p *Player) setStateLocked(s State) {
	if p.state == s {
		return
	}
	slog.Info("playback state", "from", p.state, "to", s)
	p.state = s
}

// --- session callbacks ---

func (p *Player) onMessage(msg *lyria.ServerMessage) {
	if msg.FilteredPrompt != nil {
		reason := msg.FilteredPrompt.FilteredReason
		if reason == "" {
			reason = "a layer was filtered by the service"
		}
		slog.Warn("prompt filtered", "text", msg.FilteredPrompt.Text, "reason", reason)
		p.mu.Lock()
		p.filterNotice = reason
		p.mu.Unlock()
	}

	if msg.ServerContent == nil || len(msg.ServerContent.AudioChunks) == 0 {
		return
	}
	p.mu.Lock()
	active := p.sess != nil
	p.mu.Unlock()
	if !active {
		return // chunks racing a teardown
	}

	payloads := make([]string, 0, len(msg.ServerContent.AudioChunks))
	for _, c := range msg.ServerContent.AudioChunks {
		if c.Data != "" {
			payloads = append(payloads, c.Data)
		}
	}
	p.sched.ScheduleChunks(payloads)
}

func (p *Player) onSessionError(err error) {
	slog.Error("session transport error", "err", err)
	p.mu.Lock()
	p.errNotice = "connection lost; check your network and press play to retry"
	p.mu.Unlock()
	p.HardStop()
}

func (p *Player) onSessionClose() {
	p.mu.Lock()
	if p.sess == nil {
		// Teardown we initiated; not an event.
		p.mu.Unlock()
		return
	}
	p.sess = nil
	wasPlaying := p.state == Playing
	auto := p.autoReconnect
	delay := p.reconnectDelay
	p.mu.Unlock()

	slog.Warn("session closed by server", "was_playing", wasPlaying, "auto_reconnect", auto)
	if auto && wasPlaying {
		time.AfterFunc(delay, func() { p.reconnect(context.Background()) })
		return
	}
	p.mu.Lock()
	p.errNotice = "session ended by the server; press play to start a new one"
	p.mu.Unlock()
	p.HardStop()
}

func (p *Player) onCountdownExpired() {
	p.mu.Lock()
	wasPlaying := p.state == Playing
	auto := p.autoReconnect
	p.mu.Unlock()

	if wasPlaying && auto {
		// Proactive: don't wait for the server to hang up.
		p.reconnect(context.Background())
		return
	}
	p.mu.Lock()
	p.errNotice = "session expired (10 minute limit); press play to start a new one"
	p.mu.Unlock()
	p.HardStop()
}

// --- session lifecycle ---

// ensureSession returns the live session, opening one if needed.
// Concurrent callers share a single in-flight connect; a missing
// credential fails fast with no transport attempt.
func (p *Player) ensureSession(ctx context.Context) (lyria.MusicSession, error) {
	for {
		p.mu.Lock()
		if p.sess != nil {
			sess := p.sess
			p.mu.Unlock()
			return sess, nil
		}
		if p.connecting != nil {
			wait := p.connecting
			p.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if p.apiKey == "" {
			p.mu.Unlock()
			return nil, ErrNoAPIKey
		}
		inflight := make(chan struct{})
		p.connecting = inflight
		key := p.apiKey
		p.mu.Unlock()

		sess, err := p.dial(ctx, key, lyria.Callbacks{
			OnMessage: p.onMessage,
			OnError:   p.onSessionError,
			OnClose:   p.onSessionClose,
		})

		p.mu.Lock()
		p.connecting = nil
		close(inflight)
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("open session: %w", err)
		}
		p.sess = sess
		p.mu.Unlock()
		return sess, nil
	}
}

// closeSession nulls the handle before touching the connection so a
// concurrent teardown never double-closes.
func (p *Player) closeSession(ctx context.Context) {
	p.mu.Lock()
	sess := p.sess
	p.sess = nil
	p.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.Stop(ctx); err != nil {
		slog.Warn("stop session", "err", err)
	}
	if err := sess.Close(); err != nil {
		slog.Warn("close session", "err", err)
	}
}

func (p *Player) sendPrompts(ctx context.Context, sess lyria.MusicSession, layers []Layer) error {
	prompts := BuildWeightedPrompts(layers)
	if len(prompts) == 0 {
		// Zero enabled layers pauses generation; an empty prompt list
		// is a protocol error.
		return sess.Pause(ctx)
	}
	return sess.SetWeightedPrompts(ctx, prompts)
}

// resume (re)establishes generation on a fresh or existing session:
// prompts first, then config, then play. Order matters server-side.
func (p *Player) resume(ctx context.Context) error {
	p.mu.Lock()
	layers := append([]Layer(nil), p.layers...)
	cfg := p.cfg
	p.mu.Unlock()

	sess, err := p.ensureSession(ctx)
	if err != nil {
		return err
	}
	if err := p.sendPrompts(ctx, sess, layers); err != nil {
		return err
	}
	if err := sess.SetMusicGenerationConfig(ctx, EncodeConfig(cfg)); err != nil {
		return err
	}
	p.mu.Lock()
	p.lastBPM = cfg.BPM
	p.lastScale = cfg.Scale
	p.mu.Unlock()
	if err := sess.Play(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	p.errNotice = ""
	p.mu.Unlock()
	return nil
}

// reconnect runs the session-expiry flow: close, fresh session, resend
// prompts and config, resume. Any failure becomes a notice + hard stop.
func (p *Player) reconnect(ctx context.Context) {
	p.closeSession(ctx)
	p.mu.Lock()
	p.errNotice = "session expired (10 minute limit); reconnecting..."
	p.mu.Unlock()

	if err := p.resume(ctx); err != nil {
		p.failStop("auto-reconnect failed; press play to reconnect manually", err)
	}
}

func (p *Player) failStop(notice string, err error) {
	slog.Error(notice, "err", err)
	p.mu.Lock()
	p.errNotice = notice
	p.mu.Unlock()
	p.HardStop()
}

// --- user actions ---

// Play starts (or resumes) playback.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.apiKey == "" {
		p.errNotice = "no API key configured; set api_key in the config file"
		p.setStateLocked(Stopped)
		p.mu.Unlock()
		return ErrNoAPIKey
	}
	p.setStateLocked(Loading)
	p.filterNotice = ""
	vol := p.volume
	p.mu.Unlock()

	p.sched.SetStopped(false)

	if err := p.resume(ctx); err != nil {
		p.failStop("failed to start playback", err)
		return err
	}
	p.out.FadeTo(float64(vol)/100, 120*time.Millisecond)
	return nil
}

// Pause mutes output and tears down the cursor but keeps the session
// handle; the service holds the generation context warm.
func (p *Player) Pause(ctx context.Context) error {
	p.sched.SetStopped(true)
	p.countdown.Stop()

	p.mu.Lock()
	sess := p.sess
	p.setStateLocked(Paused)
	p.connected = false
	p.mu.Unlock()

	p.sched.StopAll()
	p.sched.ResetCursor()
	p.out.FadeTo(0, 100*time.Millisecond)

	if sess != nil {
		if err := sess.Pause(ctx); err != nil {
			slog.Warn("pause session", "err", err)
		}
	}
	return nil
}

// Stop ends playback and closes the session.
func (p *Player) Stop(ctx context.Context) error {
	p.closeSession(ctx)
	p.sched.SetStopped(true)
	p.countdown.Stop()

	p.mu.Lock()
	p.setStateLocked(Stopped)
	p.connected = false
	p.mu.Unlock()

	p.sched.StopAll()
	p.out.FadeTo(0, 50*time.Millisecond)
	p.sched.ResetCursor()
	return nil
}

// Toggle pauses when playing and plays when paused or stopped. During
// loading it does nothing.
func (p *Player) Toggle(ctx context.Context) error {
	p.mu.Lock()
	st := p.state
	p.mu.Unlock()
	switch st {
	case Playing:
		return p.Pause(ctx)
	case Paused, Stopped:
		return p.Play(ctx)
	}
	return nil
}

// HardStop is the universal cancellation path: idempotent, leaves the
// system stopped with the handle null, timers cleared, sources stopped,
// and the output faded to silence.
func (p *Player) HardStop() {
	p.closeSession(context.Background())
	p.sched.SetStopped(true)
	p.countdown.Stop()

	p.mu.Lock()
	p.setStateLocked(Stopped)
	p.connected = false
	if p.debounce != nil {
		p.debounce.Stop()
		p.debounce = nil
	}
	p.mu.Unlock()

	p.sched.StopAll()
	p.sched.ResetCursor()
	p.out.FadeTo(0, 90*time.Millisecond)
}

// --- parameter updates ---

// SetLayers replaces the layer list and, when a session is live,
// pushes the rebuilt prompt set (or a pause when nothing is enabled).
func (p *Player) SetLayers(ctx context.Context, layers []Layer) error {
	p.mu.Lock()
	p.layers = append([]Layer(nil), layers...)
	sess := p.sess
	p.mu.Unlock()

	if sess == nil {
		return nil
	}
	if err := p.sendPrompts(ctx, sess, layers); err != nil {
		slog.Error("send prompts", "err", err)
		p.mu.Lock()
		p.errNotice = "failed to update layers"
		p.mu.Unlock()
		return err
	}
	return nil
}

// SetConfig records the new parameter set. Sends are debounced: rapid
// edits coalesce into one update after a quiet period, after which a
// drastic tempo/key change also resets the generation context.
func (p *Player) SetConfig(_ context.Context, cfg GlobalConfig) {
	p.mu.Lock()
	p.cfg = cfg
	if p.sess == nil || p.state != Playing {
		p.mu.Unlock()
		return
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.flushConfig(context.Background())
	})
	p.mu.Unlock()
}

// flushConfig sends the pending config and reports what changed
// drastically since the last send.
func (p *Player) flushConfig(ctx context.Context) (DrasticChange, error) {
	p.mu.Lock()
	sess := p.sess
	cfg := p.cfg
	lastBPM := p.lastBPM
	lastScale := p.lastScale
	p.debounce = nil
	p.mu.Unlock()

	if sess == nil {
		return DrasticChange{}, nil
	}
	if err := sess.SetMusicGenerationConfig(ctx, EncodeConfig(cfg)); err != nil {
		slog.Error("send config", "err", err)
		return DrasticChange{}, err
	}

	change := DetectDrastic(cfg, lastBPM, lastScale)
	if change.Any() {
		if err := sess.ResetContext(ctx); err != nil {
			slog.Warn("reset context", "err", err)
		}
	}
	p.mu.Lock()
	if change.BPMChanged {
		p.lastBPM = cfg.BPM
	}
	if change.ScaleChanged {
		p.lastScale = cfg.Scale
	}
	p.mu.Unlock()
	return change, nil
}

// SetAPIKey installs a new credential. When a session is live the old
// one is closed; if playback was active it reconnects with the new key
// and resumes, or hard-stops with a notice on failure.
func (p *Player) SetAPIKey(ctx context.Context, key string) {
	p.mu.Lock()
	if key == p.apiKey {
		p.mu.Unlock()
		return
	}
	p.apiKey = key
	hadSession := p.sess != nil
	wasPlaying := p.state == Playing
	p.mu.Unlock()

	if !hadSession {
		return
	}
	slog.Info("credential changed, closing session", "was_playing", wasPlaying)
	p.closeSession(ctx)

	if !wasPlaying {
		return
	}
	if key == "" {
		p.mu.Lock()
		p.errNotice = "API key removed; playback stopped"
		p.mu.Unlock()
		p.HardStop()
		return
	}

	p.mu.Lock()
	p.setStateLocked(Loading)
	p.mu.Unlock()
	if err := p.resume(ctx); err != nil {
		p.failStop("failed to reconnect with the new API key", err)
	}
}

func (p *Player) SetVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	p.mu.Lock()
	p.volume = v
	active := p.state == Playing || p.state == Loading
	p.mu.Unlock()
	if active {
		p.out.FadeTo(float64(v)/100, 20*time.Millisecond)
	}
}

func (p *Player) SetAutoReconnect(on bool) {
	p.mu.Lock()
	p.autoReconnect = on
	p.mu.Unlock()
}

// --- observation ---

// Snapshot is the pull-based view the control surface polls.
type Snapshot struct {
	Playback          State              `json:"playback"`
	Connected         bool               `json:"connected"`
	AutoReconnect     bool               `json:"autoReconnect"`
	Volume            int                `json:"volume"`
	Layers            []Layer            `json:"layers"`
	NormalizedWeights map[string]float64 `json:"normalizedWeights"`
	Config            GlobalConfig       `json:"config"`
	SessionRemaining  *int               `json:"sessionTimeRemaining"`
	Error             string             `json:"error,omitempty"`
	FilteredNotice    string             `json:"filteredNotice,omitempty"`
}

func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	snap := Snapshot{
		Playback:       p.state,
		Connected:      p.connected,
		AutoReconnect:  p.autoReconnect,
		Volume:         p.volume,
		Layers:         append([]Layer(nil), p.layers...),
		Config:         p.cfg,
		Error:          p.errNotice,
		FilteredNotice: p.filterNotice,
	}
	p.mu.Unlock()

	snap.NormalizedWeights = normalizedWeights(snap.Layers)
	if rem, ok := p.countdown.Remaining(); ok {
		snap.SessionRemaining = &rem
	}
	return snap
}

// normalizedWeights mirrors what the session receives, with disabled
// and zero-weight layers shown as 0.
func normalizedWeights(layers []Layer) map[string]float64 {
	var sum float64
	for _, l := range layers {
		if l.Enabled && l.Weight > 0 {
			sum += l.Weight
		}
	}
	weights := make(map[string]float64, len(layers))
	for _, l := range layers {
		if !l.Enabled || l.Weight <= 0 || sum == 0 {
			weights[l.ID] = 0
			continue
		}
		weights[l.ID] = l.Weight / sum
	}
	return weights
}

// Config returns the current parameter set.
func (p *Player) Config() GlobalConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// ClearNotices dismisses the error and filter notices.
func (p *Player) ClearNotices() {
	p.mu.Lock()
	p.errNotice = ""
	p.filterNotice = ""
	p.mu.Unlock()
}
