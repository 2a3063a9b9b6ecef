package audio

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Source.Stop when the source was already
// stopped. The scheduler tolerates it silently.
var ErrStopped = errors.New("audio: source already stopped")

// Source is one buffer placed on the output timeline.
type Source interface {
	Stop() error
}

// Output is the device the scheduler places buffers on. CurrentTime is
// the device clock in seconds, monotonically increasing while active;
// Schedule queues a buffer to start at an absolute device time.
type Output interface {
	CurrentTime() float64
	Schedule(buf *Buffer, at float64) (Source, error)
}

// Events receives scheduler state notifications. Buffering fires when
// the lead horizon is (re)armed, including after starvation; Playing
// fires once the first chunk's lead time has elapsed.
type Events interface {
	Buffering()
	Playing()
}

// Scheduler places decoded chunks back-to-back on the output timeline.
// A lead-time horizon in front of the first chunk absorbs network
// jitter; if the cursor falls behind the device clock the stream is
// starved and the scheduler re-enters buffering instead of playing
// stale audio.
type Scheduler struct {
	out      Output
	events   Events
	rate     int
	channels int
	lead     time.Duration

	mu        sync.Mutex
	stopped   bool
	nextStart float64 // 0 means no buffer queued; next chunk re-arms the horizon
	seen      *dedup
	live      []liveSource
	leadTimer *time.Timer
}

type liveSource struct {
	src Source
	end float64
}

func NewScheduler(out Output, events Events, sampleRate, channels int, lead time.Duration) *Scheduler {
	return &Scheduler{
		out:      out,
		events:   events,
		rate:     sampleRate,
		channels: channels,
		lead:     lead,
		stopped:  true,
		seen:     newDedup(),
	}
}

// ScheduleChunks decodes and schedules base64 PCM payloads in arrival
// order. One malformed chunk is skipped, never fatal. Chunks arriving
// after a hard stop are dropped.
func (s *Scheduler) ScheduleChunks(payloads []string) {
	var notify []func()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	for _, payload := range payloads {
		if payload == "" {
			continue
		}
		if s.seen.isDuplicate(payload) {
			continue
		}
		s.seen.remember(payload)

		buf, err := DecodeBase64(payload, s.rate, s.channels)
		if err != nil {
			slog.Warn("skipping undecodable chunk", "err", err)
			continue
		}

		now := s.out.CurrentTime()

		if s.nextStart == 0 {
			s.nextStart = now + s.lead.Seconds()
			s.armLeadTimerLocked()
			notify = append(notify, s.events.Buffering)
		}

		if s.nextStart < now {
			// Starved: the cursor fell behind real time. Drop this
			// buffer, reset the cursor, and let the next delivery
			// re-arm the lead horizon.
			s.nextStart = 0
			s.seen.reset()
			notify = append(notify, s.events.Buffering)
			break
		}

		src, err := s.out.Schedule(buf, s.nextStart)
		if err != nil {
			slog.Error("schedule buffer", "at", s.nextStart, "err", err)
			continue
		}
		end := s.nextStart + buf.Duration()
		s.live = append(s.live, liveSource{src: src, end: end})
		s.nextStart = end
		s.sweepLocked(now)
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// sweepLocked drops bookkeeping for sources that have finished playing.
func (s *Scheduler) sweepLocked(now float64) {
	kept := s.live[:0]
	for _, ls := range s.live {
		if ls.end > now {
			kept = append(kept, ls)
		}
	}
	s.live = kept
}

func (s *Scheduler) armLeadTimerLocked() {
	if s.leadTimer != nil {
		s.leadTimer.Stop()
	}
	s.leadTimer = time.AfterFunc(s.lead, func() {
		s.mu.Lock()
		fire := !s.stopped
		s.leadTimer = nil
		s.mu.Unlock()
		if fire {
			s.events.Playing()
		}
	})
}

// SetStopped latches the hard-stopped state. While stopped, arriving
// chunks are discarded and a pending lead timer will not fire.
func (s *Scheduler) SetStopped(stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = stopped
	if stopped {
		if s.leadTimer != nil {
			s.leadTimer.Stop()
			s.leadTimer = nil
		}
		s.seen.reset()
	}
}

// StopAll cancels every live source. Sources that already ended are
// fine; any other stop failure is surfaced in the log.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	live := s.live
	s.live = nil
	s.mu.Unlock()

	for _, ls := range live {
		if err := ls.src.Stop(); err != nil && !errors.Is(err, ErrStopped) {
			slog.Error("stop audio source", "err", err)
		}
	}
}

// ResetCursor forgets the timeline position and the dedup history. The
// next chunk establishes a fresh lead-time horizon.
func (s *Scheduler) ResetCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStart = 0
	s.seen.reset()
}

// NextStart reports the cursor for observability; 0 means unset.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// LiveCount reports how many scheduled sources have not yet finished.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
