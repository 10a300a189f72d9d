// Package playback streams WAV files to an output device in the background.
package playback

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/device"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/oneshot"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Playing
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage tells where a failed playback stopped.
type Stage int

const (
	StageNone Stage = iota
	// StageOpen covers the file, its header and the output device. Nothing
	// was written.
	StageOpen
	// StageWrite means some audio may have reached the device.
	StageWrite
)

func (s Stage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageWrite:
		return "write"
	default:
		return "none"
	}
}

type Result struct {
	Path   string
	Format audio.Format
	// Frames is the number of PCM frames handed to the device.
	Frames int
	Stage  Stage
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Opener opens speaker streams. device.Backend satisfies it.
type Opener interface {
	OpenOutput(ctx context.Context, cfg device.Config) (device.OutputStream, error)
}

type Options struct {
	ChunkFrames int
	Device      string
	Driver      string
	Logger      *zap.Logger
}

type Player struct {
	opener Opener
	opts   Options
	logger *zap.Logger
}

func NewPlayer(opener Opener, opts Options) *Player {
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = device.DefaultChunkFrames
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{opener: opener, opts: opts, logger: logger}
}

// Session is one playback of one file.
type Session struct {
	path   string
	result *oneshot.Once[Result]

	mu    sync.Mutex
	state State
}

// Play starts playing path and returns without waiting for the device.
// Cancelling ctx stops playback at the next chunk boundary.
func (p *Player) Play(ctx context.Context, path string) *Session {
	s := &Session{path: path, result: oneshot.New[Result]()}
	go s.run(ctx, p)
	return s
}

func (s *Session) Path() string {
	return s.path
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when playback has finished or failed.
func (s *Session) Done() <-chan struct{} {
	return s.result.Done()
}

// Result returns the outcome once the session is done.
func (s *Session) Result() (Result, bool) {
	return s.result.Value()
}

// Wait blocks until playback ends. The error is the playback failure, or the
// ctx error if ctx ends first.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	res, err := s.result.Wait(ctx)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context, p *Player) {
	s.setState(Playing)

	res := p.play(ctx, s.path)
	if res.Err != nil {
		p.logger.Debug("playback failed", zap.String("path", s.path), zap.Stringer("stage", res.Stage), zap.Error(res.Err))
		s.setState(Failed)
	} else {
		p.logger.Debug("playback finished", zap.String("path", s.path), zap.Int("frames", res.Frames))
		s.setState(Finished)
	}
	s.result.Resolve(res)
}

// play returns only after the file and the device are closed.
func (p *Player) play(ctx context.Context, path string) Result {
	res := Result{Path: path}

	r, err := audio.OpenWAV(path)
	if err != nil {
		res.Stage = StageOpen
		res.Err = fault.FileIO("open audio file", path, err)
		return res
	}
	res.Format = r.Format

	out, err := p.opener.OpenOutput(ctx, device.Config{
		Format:      r.Format,
		ChunkFrames: p.opts.ChunkFrames,
		Device:      p.opts.Device,
		Driver:      p.opts.Driver,
		Logger:      p.logger,
	})
	if err != nil {
		_ = r.Close()
		res.Stage = StageOpen
		res.Err = fault.Device("open output device", err)
		return res
	}

	p.logger.Debug("playback started", zap.String("path", path), zap.Stringer("format", r.Format), zap.Int("frames", r.Frames))

	frames, writeErr := p.stream(ctx, path, r, out)
	res.Frames = frames

	closeErr := out.Close()
	_ = r.Close()

	switch {
	case writeErr != nil:
		res.Stage = StageWrite
		res.Err = writeErr
	case closeErr != nil:
		res.Stage = StageWrite
		res.Err = fault.Device("close output device", closeErr)
	}
	return res
}

func (p *Player) stream(ctx context.Context, path string, r *audio.WAVReader, out device.OutputStream) (int, error) {
	frameSize := r.Format.FrameSize()
	buf := make([]byte, p.opts.ChunkFrames*frameSize)
	frames := 0

	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		n, readErr := io.ReadFull(r, buf)
		n -= n % frameSize
		if n > 0 {
			if err := out.Write(buf[:n]); err != nil {
				return frames, fault.Device("write output device", err)
			}
			frames += n / frameSize
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			if frames < r.Frames {
				return frames, fault.FileIO("read audio file", path, io.ErrUnexpectedEOF)
			}
			return frames, nil
		default:
			return frames, fault.FileIO("read audio file", path, readErr)
		}
	}
}
