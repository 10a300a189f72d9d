package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	stopTimeout  = 2 * time.Second
	drainTimeout = 30 * time.Second
)

type process struct {
	name   string
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan struct{}
	err    error
	logger *zap.Logger
}

func startProcess(ctx context.Context, name string, args []string, stdin, stdout *os.File, logger *zap.Logger) (*process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &process{name: name, done: make(chan struct{}), logger: logger}
	p.cmd = exec.Command(name, args...)
	if stdin != nil {
		p.cmd.Stdin = stdin
	}
	if stdout != nil {
		p.cmd.Stdout = stdout
	}
	p.cmd.Stderr = &p.stderr

	logger.Debug("starting audio command", zap.String("command", name), zap.Strings("args", args))
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	go func() {
		p.err = p.cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// exitError describes why the process ended. Only valid after done.
func (p *process) exitError() error {
	if p.err == nil {
		return nil
	}
	errText := strings.TrimSpace(p.stderr.String())
	if errText != "" {
		return fmt.Errorf("%s exited: %w (%s)", p.name, p.err, errText)
	}
	return fmt.Errorf("%s exited: %w", p.name, p.err)
}

// interrupt asks the process to stop and reaps it, killing it when the
// interrupt is ignored for longer than timeout.
func (p *process) interrupt(timeout time.Duration) error {
	if p.exited() {
		return p.exitError()
	}

	stopSignalSent := p.cmd.Process.Signal(os.Interrupt) == nil

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.logger.Debug("audio command ignored interrupt; killing", zap.String("command", p.name))
		_ = p.cmd.Process.Kill()
		<-p.done
		return nil
	}

	if p.err == nil {
		return nil
	}

	if stopSignalSent {
		p.logger.Debug("audio command exited after stop signal", zap.String("command", p.name), zap.Error(p.err))
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			p.logger.Debug("audio command stopped by signal", zap.String("command", p.name), zap.String("signal", status.Signal().String()))
			return nil
		}
	}

	return p.exitError()
}

type execInputStream struct {
	proc      *process
	pipe      *os.File
	buf       []byte
	frameSize int
	pending   error

	closeOnce sync.Once
	closeErr  error
}

// startInputCommand runs a recorder that writes raw PCM to stdout.
func startInputCommand(ctx context.Context, name string, args []string, cfg Config) (InputStream, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create input pipe: %w", err)
	}

	proc, err := startProcess(ctx, name, args, nil, pw, cfg.logger())
	_ = pw.Close()
	if err != nil {
		_ = pr.Close()
		return nil, err
	}

	return &execInputStream{
		proc:      proc,
		pipe:      pr,
		buf:       make([]byte, cfg.chunkBytes()),
		frameSize: cfg.Format.FrameSize(),
	}, nil
}

func (s *execInputStream) Read() ([]byte, error) {
	if s.pending != nil {
		return nil, s.pending
	}

	n, err := io.ReadFull(s.pipe, s.buf)
	if err == nil {
		return s.buf, nil
	}

	n -= n % s.frameSize
	s.pending = s.endOfStream(err)
	if n > 0 {
		return s.buf[:n], nil
	}
	return nil, s.pending
}

func (s *execInputStream) endOfStream(readErr error) error {
	if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read from %s: %w", s.proc.name, readErr)
	}

	<-s.proc.done
	if err := s.proc.exitError(); err != nil {
		return err
	}
	return io.EOF
}

func (s *execInputStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.proc.interrupt(stopTimeout)
		if err := s.pipe.Close(); err != nil && s.closeErr == nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

type execOutputStream struct {
	proc *process
	pipe *os.File

	closeOnce sync.Once
	closeErr  error
}

// startOutputCommand runs a player that reads raw PCM from stdin.
func startOutputCommand(ctx context.Context, name string, args []string, cfg Config) (OutputStream, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	proc, err := startProcess(ctx, name, args, pr, nil, cfg.logger())
	_ = pr.Close()
	if err != nil {
		_ = pw.Close()
		return nil, err
	}

	return &execOutputStream{proc: proc, pipe: pw}, nil
}

func (s *execOutputStream) Write(p []byte) error {
	if s.proc.exited() {
		if err := s.proc.exitError(); err != nil {
			return err
		}
		return fmt.Errorf("%s exited before playback finished", s.proc.name)
	}

	if _, err := s.pipe.Write(p); err != nil {
		if s.proc.exited() {
			if exitErr := s.proc.exitError(); exitErr != nil {
				return exitErr
			}
		}
		return fmt.Errorf("write to %s: %w", s.proc.name, err)
	}
	return nil
}

func (s *execOutputStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.pipe.Close()

		timer := time.NewTimer(drainTimeout)
		defer timer.Stop()

		select {
		case <-s.proc.done:
			s.closeErr = s.proc.exitError()
		case <-timer.C:
			s.closeErr = s.proc.interrupt(stopTimeout)
		}
	})
	return s.closeErr
}
