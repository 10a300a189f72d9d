// Package synth turns text into a speech WAV file through a provider.
package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/oneshot"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VoiceConfig struct {
	Name         string
	LanguageCode string
}

var DefaultVoice = VoiceConfig{Name: "en-US-Wavenet-D", LanguageCode: "en-US"}

type Request struct {
	Text         string
	VoiceName    string
	LanguageCode string
}

// Provider returns raw little-endian 16-bit mono PCM at 24 kHz.
type Provider interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result carries the written file on success and the error on failure.
type Result struct {
	Path   string
	Format audio.Format
	Err    error
}

type Options struct {
	// OutputPath is used as is when set. Otherwise each run writes a new
	// speech-<uuid>.wav under OutputDir.
	OutputPath string
	OutputDir  string
	Logger     *zap.Logger
}

type Synthesizer struct {
	provider Provider
	opts     Options
	logger   *zap.Logger
}

func New(provider Provider, opts Options) *Synthesizer {
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{provider: provider, opts: opts, logger: logger}
}

type Task struct {
	result *oneshot.Once[Result]

	mu    sync.Mutex
	state State
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Done() <-chan struct{} {
	return t.result.Done()
}

func (t *Task) Result() (Result, bool) {
	return t.result.Value()
}

// Wait blocks until the task completes and returns its result. The error is
// the synthesis failure, or the ctx error if ctx ends first.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	res, err := t.result.Wait(ctx)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

func (t *Task) setState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// Start synthesizes text in the background.
func (s *Synthesizer) Start(ctx context.Context, text string, voice VoiceConfig) *Task {
	task := &Task{result: oneshot.New[Result]()}
	go func() {
		task.setState(Running)
		res := s.run(ctx, text, voice)
		if res.Err != nil {
			task.setState(Failed)
		} else {
			task.setState(Succeeded)
		}
		task.result.Resolve(res)
	}()
	return task
}

func (s *Synthesizer) run(ctx context.Context, text string, voice VoiceConfig) Result {
	res := Result{Format: audio.SpeechFormat}

	text = strings.TrimSpace(text)
	if text == "" {
		res.Err = fault.InvalidInput("no text to synthesize")
		return res
	}
	if voice.Name == "" {
		voice.Name = DefaultVoice.Name
	}
	if voice.LanguageCode == "" {
		voice.LanguageCode = DefaultVoice.LanguageCode
	}

	s.logger.Debug("synthesizing speech", zap.Int("chars", len(text)), zap.String("voice", voice.Name), zap.String("language", voice.LanguageCode))

	pcm, err := s.provider.Synthesize(ctx, Request{Text: text, VoiceName: voice.Name, LanguageCode: voice.LanguageCode})
	if err != nil {
		if fault.KindOf(err) == nil {
			err = fault.Provider("synthesize speech", err)
		}
		res.Err = err
		return res
	}
	if len(pcm) == 0 {
		res.Err = fault.Provider("synthesize speech", fmt.Errorf("provider returned no audio"))
		return res
	}
	if len(pcm)%audio.SpeechFormat.FrameSize() != 0 {
		res.Err = fault.Provider("synthesize speech", fmt.Errorf("pcm payload of %d bytes is not 16-bit aligned", len(pcm)))
		return res
	}

	path := s.outputPath()
	if err := writeAtomically(path, pcm); err != nil {
		res.Err = fault.FileIO("write speech file", path, err)
		return res
	}

	s.logger.Debug("speech written", zap.String("path", path), zap.Duration("duration", audio.SpeechFormat.Duration(len(pcm))))
	res.Path = path
	return res
}

func (s *Synthesizer) outputPath() string {
	if s.opts.OutputPath != "" {
		return s.opts.OutputPath
	}
	return filepath.Join(s.opts.OutputDir, "speech-"+uuid.NewString()+".wav")
}

// writeAtomically writes into a temporary sibling and renames it over path,
// so a failed write never leaves a partial file behind.
func writeAtomically(path string, pcm []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".speech-*.wav.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := audio.WriteWAV(tmp, audio.SpeechFormat, pcm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
