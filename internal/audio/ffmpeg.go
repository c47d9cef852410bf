package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/tapedeck/internal/config"
)

const (
	chunkSize       = 4096
	stopGracePeriod = 5 * time.Second
)

// FFmpegDevice captures from a PulseAudio/PipeWire or ALSA source and
// encodes on the fly, streaming the container to stdout.
type FFmpegDevice struct {
	cfg       config.AudioConfig
	logWriter io.Writer
	sources   SourceLister
}

// NewFFmpegDevice creates a device for cfg. sources may be nil to skip the
// pre-flight source check.
func NewFFmpegDevice(cfg config.AudioConfig, sources SourceLister, logWriter io.Writer) *FFmpegDevice {
	if logWriter == nil {
		logWriter = io.Discard
	}
	return &FFmpegDevice{cfg: cfg, logWriter: logWriter, sources: sources}
}

func (d *FFmpegDevice) inputFormat() string {
	if strings.EqualFold(d.cfg.Backend, "alsa") {
		return "alsa"
	}
	return "pulse"
}

func (d *FFmpegDevice) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", d.inputFormat(),
		"-i", d.cfg.Source,
		"-ac", fmt.Sprintf("%d", d.cfg.Channels),
		"-ar", fmt.Sprintf("%d", d.cfg.SampleRate),
		"-c:a", d.cfg.Codec,
		"-f", d.cfg.Container,
		"pipe:1",
	}
}

// Open starts ffmpeg and waits until it produces output, exits, or the
// probe window elapses.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	if d.sources != nil {
		if err := d.sources.ValidateSource(d.cfg.Source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
	}

	cmd := exec.Command(d.cfg.FFmpegPath, d.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	slog.Debug("Starting capture encoder", "command", d.cfg.FFmpegPath+" "+strings.Join(d.args(), " "))

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:    cmd,
		chunks: make(chan []byte, 64),
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}
	s.start(stdout, stderr, d.logWriter)

	timer := time.NewTimer(d.cfg.ProbeTimeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		slog.Debug("Capture encoder producing output", "source", d.cfg.Source)
		return s, nil
	case <-s.exited:
		return nil, fmt.Errorf("%w: ffmpeg exited: %s", ErrDeviceUnavailable, s.stderrTail())
	case <-timer.C:
		s.kill()
		return nil, fmt.Errorf("%w: no audio from %q within %s", ErrDeviceUnavailable, d.cfg.Source, d.cfg.ProbeTimeout)
	case <-ctx.Done():
		s.kill()
		return nil, ctx.Err()
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	chunks chan []byte

	ready     chan struct{}
	readyOnce sync.Once
	exited    chan struct{}
	waitErr   error

	stderrMu  sync.Mutex
	stderrBuf strings.Builder

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *ffmpegStream) start(stdout, stderr io.ReadCloser, logWriter io.Writer) {
	var readers sync.WaitGroup
	readers.Add(2)

	go func() {
		defer readers.Done()
		defer close(s.chunks)
		buf := make([]byte, chunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				s.readyOnce.Do(func() { close(s.ready) })
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.chunks <- chunk
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			s.stderrMu.Lock()
			s.stderrBuf.WriteString(line + "\n")
			s.stderrMu.Unlock()
			fmt.Fprintln(logWriter, line)
			slog.Debug("FFmpeg output", "stream", "stderr", "line", line)
		}
	}()

	// Wait must not run before the pipes are drained.
	go func() {
		readers.Wait()
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	}()
}

func (s *ffmpegStream) stderrTail() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()
	out := strings.TrimSpace(s.stderrBuf.String())
	if out == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(out, "\n")
	return lines[len(lines)-1]
}

func (s *ffmpegStream) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	go s.drain()
	<-s.exited
}

func (s *ffmpegStream) drain() {
	for range s.chunks {
	}
}

// Close asks ffmpeg to finish the container and exit, killing it after the
// grace period.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			slog.Debug("Sending SIGINT to capture encoder")
			if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
				slog.Debug("Failed to interrupt capture encoder, killing", "error", err)
				s.cmd.Process.Kill()
			}
		}

		select {
		case <-s.exited:
		case <-time.After(stopGracePeriod):
			slog.Warn("Capture encoder did not exit within timeout, force killing")
			s.cmd.Process.Kill()
			<-s.exited
		}

		s.closeErr = normalizeExit(s.waitErr)
	})
	return s.closeErr
}

// normalizeExit treats the exit statuses ffmpeg reports after an interrupt
// as success.
func normalizeExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 255 {
			return nil
		}
		if exitErr.ProcessState != nil {
			state := exitErr.ProcessState.String()
			if state == "signal: interrupt" || state == "signal: killed" {
				return nil
			}
		}
	}
	return fmt.Errorf("ffmpeg process failed: %w", err)
}
