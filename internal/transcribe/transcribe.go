// Package transcribe defines where audio for recognition comes from and the
// engines that turn it into text.
package transcribe

import (
	"context"
	"strings"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/fault"
)

// BlankToken is the transcript for audio without speech.
const BlankToken = "[BLANK_AUDIO]"

// Source is either a WAV file on disk or a live capture buffer. Exactly one
// of the fields must be set.
type Source struct {
	Path   string
	Buffer *audio.Buffer

	// origin names a file whose PCM was already loaded into Buffer.
	origin string
}

func FileSource(path string) Source {
	return Source{Path: path}
}

func BufferSource(buf audio.Buffer) Source {
	return Source{Buffer: &buf}
}

func (s Source) Validate() error {
	hasPath := strings.TrimSpace(s.Path) != ""
	switch {
	case hasPath && s.Buffer != nil:
		return fault.InvalidInput("ambiguous audio source")
	case !hasPath && s.Buffer == nil:
		return fault.InvalidInput("no audio file selected")
	}
	return nil
}

// Load returns the PCM payload of the source and its format.
func (s Source) Load() (audio.Format, []byte, error) {
	if err := s.Validate(); err != nil {
		return audio.Format{}, nil, err
	}
	if s.Buffer != nil {
		return s.Buffer.Format(), s.Buffer.Bytes(), nil
	}

	format, pcm, err := audio.ReadWAV(s.Path)
	if err != nil {
		return audio.Format{}, nil, fault.FileIO("read audio file", s.Path, err)
	}
	return format, pcm, nil
}

// preloaded carries a file's decoded PCM so engines do not read it again.
func (s Source) preloaded(format audio.Format, pcm []byte) Source {
	if s.Buffer != nil {
		return s
	}
	buf := audio.NewBuffer(format, []audio.Frame{pcm})
	return Source{Buffer: &buf, origin: s.Path}
}

func (s Source) String() string {
	if s.origin != "" {
		return s.origin
	}
	if s.Buffer != nil {
		return "microphone"
	}
	return s.Path
}

type Request struct {
	Source       Source
	LanguageCode string
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (string, error)

func (f EngineFunc) Transcribe(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// IsBlank reports whether transcript carries no speech.
func IsBlank(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(trimmed, BlankToken)
}
