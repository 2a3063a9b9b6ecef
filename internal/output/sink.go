package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// FFPlaySink plays raw s16le audio through an ffplay child process.
type FFPlaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFPlaySink starts ffplay reading interleaved s16le from stdin.
func NewFFPlaySink(ctx context.Context, sampleRate, channels int) (*FFPlaySink, error) {
	layout := "stereo"
	if channels == 1 {
		layout = "mono"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-nodisp",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ch_layout", layout,
		"-i", "-",
	}

	cmd := exec.CommandContext(ctx, "ffplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}
	slog.Info("local audio output started (ffplay)", "rate", sampleRate, "channels", channels)

	go func() {
		<-ctx.Done()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		slog.Info("local audio output stopped")
	}()

	return &FFPlaySink{cmd: cmd, stdin: stdin}, nil
}

func (s *FFPlaySink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *FFPlaySink) Close() error {
	err := s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return err
}

// WriterSink adapts any writer (a host bridge, a pipe, a capture file)
// into a timeline sink.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Discard swallows all audio; used when no output device is wanted.
var Discard io.WriteCloser = discardSink{}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Close() error                { return nil }
