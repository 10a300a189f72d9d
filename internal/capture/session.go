// Package capture records microphone audio into an in-memory buffer.
package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/device"
	"github.com/fmueller/voxtalk/internal/fault"
	"go.uber.org/zap"
)

var ErrNotRecording = errors.New("no recording to collect")

const DefaultStopGrace = 2 * time.Second

type State int

const (
	Idle State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Opener opens microphone streams. device.Backend satisfies it.
type Opener interface {
	OpenInput(ctx context.Context, cfg device.Config) (device.InputStream, error)
}

type Options struct {
	Format      audio.Format
	ChunkFrames int
	Device      string
	Driver      string
	// StopGrace bounds how long Stop waits for a blocked device read before
	// closing the stream underneath it.
	StopGrace time.Duration
	Logger    *zap.Logger
}

// Session owns one microphone and at most one capture loop at a time.
type Session struct {
	opener Opener
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	state State
	run   *run
	done  chan struct{}
}

type run struct {
	stream device.InputStream
	stop   chan struct{}
	once   sync.Once
	done   chan struct{}

	// Written by the loop only; read after done is closed.
	frames []audio.Frame
	err    error
}

func (r *run) signal() {
	r.once.Do(func() { close(r.stop) })
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func NewSession(opener Opener, opts Options) *Session {
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.CaptureFormat
	}
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = device.DefaultChunkFrames
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	done := make(chan struct{})
	close(done)
	return &Session{opener: opener, opts: opts, logger: logger, done: done}
}

func (s *Session) Format() audio.Format {
	return s.opts.Format
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the current capture loop has exited, either because
// Stop was called or because the device failed.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start opens the microphone and begins capturing. It does nothing when a
// recording is already in progress. Cancelling ctx ends the capture loop like
// Stop does, but the buffer is still collected with Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording {
		return nil
	}
	s.run = nil

	stream, err := s.opener.OpenInput(ctx, device.Config{
		Format:      s.opts.Format,
		ChunkFrames: s.opts.ChunkFrames,
		Device:      s.opts.Device,
		Driver:      s.opts.Driver,
		Logger:      s.logger,
	})
	if err != nil {
		s.state = Stopped
		return fault.Device("open microphone", err)
	}

	r := &run{
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.run = r
	s.done = r.done
	s.state = Recording

	s.logger.Debug("capture started", zap.Stringer("format", s.opts.Format), zap.Int("chunk_frames", s.opts.ChunkFrames))
	go s.loop(ctx, r)
	return nil
}

// Stop ends the recording and hands its buffer to the caller. The error
// reports a device failure that ended the recording early; the frames read
// before it are still returned.
func (s *Session) Stop() (audio.Buffer, error) {
	s.mu.Lock()
	r := s.run
	if r == nil {
		s.mu.Unlock()
		return audio.Buffer{}, ErrNotRecording
	}
	s.run = nil
	s.state = Stopped
	s.mu.Unlock()

	r.signal()

	timer := time.NewTimer(s.opts.StopGrace)
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		s.logger.Debug("device read still blocked after stop; closing stream")
		_ = r.stream.Close()
		<-r.done
	}

	buf := audio.NewBuffer(s.opts.Format, r.frames)
	s.logger.Debug("capture stopped", zap.Int("chunks", buf.Len()), zap.Int("bytes", buf.Size()), zap.Duration("duration", buf.Duration()), zap.Error(r.err))
	return buf, r.err
}

func (s *Session) loop(ctx context.Context, r *run) {
	defer close(r.done)
	defer s.finish(r)

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := r.stream.Read()
		if err != nil {
			if r.stopped() || ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			r.err = fault.Device("read microphone", err)
			s.logger.Warn("microphone read failed", zap.Error(err))
			return
		}

		frame := make(audio.Frame, len(chunk))
		copy(frame, chunk)
		r.frames = append(r.frames, frame)
	}
}

func (s *Session) finish(r *run) {
	if err := r.stream.Close(); err != nil {
		s.logger.Debug("close microphone", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == r && s.state == Recording {
		s.state = Stopped
	}
}
