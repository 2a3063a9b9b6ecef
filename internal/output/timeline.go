package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/annsts/underlay/internal/audio"
)

const renderBlock = 100 * time.Millisecond

// Timeline is the output device: a paced renderer that assembles
// scheduled buffers into a continuous s16le stream, filling silence
// where nothing is scheduled. A master gain with linear ramps sits in
// front of the sink so stops and volume changes never click.
type Timeline struct {
	sink     io.WriteCloser
	rate     int
	channels int

	mu         sync.Mutex
	segments   []*segment
	rendered   int64 // frames written to the sink so far
	gain       float64
	gainTarget float64
	gainStep   float64 // per-frame delta while ramping

	start time.Time
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewTimeline starts the render loop writing to sink. The initial gain
// is 0 (silent); callers fade in.
func NewTimeline(sink io.WriteCloser, sampleRate, channels int) *Timeline {
	t := &Timeline{
		sink:     sink,
		rate:     sampleRate,
		channels: channels,
		start:    time.Now(),
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// CurrentTime is the device clock in seconds since the timeline opened.
func (t *Timeline) CurrentTime() float64 {
	return time.Since(t.start).Seconds()
}

// Schedule queues a buffer to start at an absolute device time.
func (t *Timeline) Schedule(buf *audio.Buffer, at float64) (audio.Source, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return nil, fmt.Errorf("timeline closed")
	default:
	}
	seg := &segment{
		tl:         t,
		startFrame: int64(math.Round(at * float64(t.rate))),
		buf:        buf,
	}
	t.segments = append(t.segments, seg)
	return seg, nil
}

// FadeTo ramps the master gain linearly to target over the given
// duration. A zero duration snaps immediately.
func (t *Timeline) FadeTo(target float64, over time.Duration) {
	if target < 0 {
		target = 0
	} else if target > 1 {
		target = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gainTarget = target
	frames := over.Seconds() * float64(t.rate)
	if frames < 1 {
		t.gain = target
		t.gainStep = 0
		return
	}
	t.gainStep = (target - t.gain) / frames
}

// Close stops the render loop and closes the sink.
func (t *Timeline) Close() error {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		return nil
	default:
		close(t.done)
	}
	t.mu.Unlock()
	t.wg.Wait()
	return t.sink.Close()
}

func (t *Timeline) run() {
	defer t.wg.Done()
	ticker := time.NewTicker(renderBlock)
	defer ticker.Stop()

	blockFrames := int64(float64(t.rate) * renderBlock.Seconds())

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		// Render up to the wall clock plus one block of lookahead so
		// the sink never starves between ticks.
		target := int64(time.Since(t.start).Seconds()*float64(t.rate)) + blockFrames
		for {
			t.mu.Lock()
			if t.rendered >= target {
				t.mu.Unlock()
				break
			}
			block := t.renderBlockLocked(blockFrames)
			t.mu.Unlock()

			if _, err := t.sink.Write(block); err != nil {
				slog.Error("audio sink write failed", "err", err)
				return
			}
		}
	}
}

// renderBlockLocked mixes one block starting at t.rendered and advances
// the render cursor.
func (t *Timeline) renderBlockLocked(frames int64) []byte {
	blockStart := t.rendered
	blockEnd := blockStart + frames
	mix := make([]float64, frames*int64(t.channels))

	kept := t.segments[:0]
	for _, seg := range t.segments {
		segFrames := int64(seg.buf.Frames())
		segEnd := seg.startFrame + segFrames
		if segEnd <= blockStart {
			continue // fully played, drop
		}
		kept = append(kept, seg)
		if seg.startFrame >= blockEnd {
			continue // not due yet
		}
		from := max64(seg.startFrame, blockStart)
		to := min64(segEnd, blockEnd)
		for f := from; f < to; f++ {
			sf := f - seg.startFrame
			bf := f - blockStart
			for ch := 0; ch < t.channels; ch++ {
				c := ch
				if c >= len(seg.buf.Channels) {
					c = len(seg.buf.Channels) - 1
				}
				mix[bf*int64(t.channels)+int64(ch)] += float64(seg.buf.Channels[c][sf])
			}
		}
	}
	t.segments = kept

	out := make([]byte, len(mix)*2)
	for f := int64(0); f < frames; f++ {
		if t.gainStep != 0 {
			t.gain += t.gainStep
			if (t.gainStep > 0 && t.gain >= t.gainTarget) ||
				(t.gainStep < 0 && t.gain <= t.gainTarget) {
				t.gain = t.gainTarget
				t.gainStep = 0
			}
		}
		for ch := 0; ch < t.channels; ch++ {
			i := f*int64(t.channels) + int64(ch)
			v := mix[i] * t.gain
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
		}
	}

	t.rendered = blockEnd
	return out
}

// segment is one scheduled buffer on the timeline.
type segment struct {
	tl         *Timeline
	startFrame int64
	buf        *audio.Buffer
	stopped    bool
}

// Stop removes the segment from the timeline. A second stop reports
// audio.ErrStopped, which schedulers tolerate.
func (s *segment) Stop() error {
	s.tl.mu.Lock()
	defer s.tl.mu.Unlock()
	if s.stopped {
		return audio.ErrStopped
	}
	s.stopped = true
	for i, seg := range s.tl.segments {
		if seg == s {
			s.tl.segments = append(s.tl.segments[:i], s.tl.segments[i+1:]...)
			break
		}
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
