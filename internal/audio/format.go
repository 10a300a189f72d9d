package audio

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnsupportedFormat = errors.New("unsupported pcm format")

// Format describes interleaved linear PCM. SampleWidth is in bytes.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int
}

var (
	// SpeechFormat is the contract for synthesized speech files.
	SpeechFormat = Format{SampleRate: 24000, Channels: 1, SampleWidth: 2}

	CaptureFormat = Format{SampleRate: 16000, Channels: 1, SampleWidth: 2}
)

func (f Format) FrameSize() int {
	return f.Channels * f.SampleWidth
}

func (f Format) BitDepth() int {
	return f.SampleWidth * 8
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

func (f Format) Duration(byteCount int) time.Duration {
	if f.BytesPerSecond() <= 0 {
		return 0
	}
	return time.Duration(int64(byteCount) * int64(time.Second) / int64(f.BytesPerSecond()))
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrUnsupportedFormat, f.Channels)
	}
	switch f.SampleWidth {
	case 1, 2, 3, 4:
		return nil
	default:
		return fmt.Errorf("%w: sample width %d bytes", ErrUnsupportedFormat, f.SampleWidth)
	}
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%d ch/%d-bit", f.SampleRate, f.Channels, f.BitDepth())
}

// Frame is one chunk of interleaved PCM as delivered by a device. Frames are
// treated as read-only once appended to a Buffer.
type Frame []byte

// Buffer is the ordered result of one recording.
type Buffer struct {
	format Format
	frames []Frame
	size   int
}

func NewBuffer(format Format, frames []Frame) Buffer {
	size := 0
	for _, frame := range frames {
		size += len(frame)
	}
	return Buffer{format: format, frames: frames, size: size}
}

func (b Buffer) Format() Format {
	return b.format
}

// Frames returns the captured chunks in arrival order.
func (b Buffer) Frames() []Frame {
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Len is the number of chunks.
func (b Buffer) Len() int {
	return len(b.frames)
}

// FrameCount is the number of PCM frames (samples per channel).
func (b Buffer) FrameCount() int {
	if b.format.FrameSize() == 0 {
		return 0
	}
	return b.size / b.format.FrameSize()
}

func (b Buffer) Size() int {
	return b.size
}

func (b Buffer) Empty() bool {
	return b.size == 0
}

func (b Buffer) Duration() time.Duration {
	return b.format.Duration(b.size)
}

// Bytes concatenates the chunks into a single PCM payload.
func (b Buffer) Bytes() []byte {
	out := make([]byte, 0, b.size)
	for _, frame := range b.frames {
		out = append(out, frame...)
	}
	return out
}

func (b Buffer) WriteWAV(path string) error {
	return WriteWAVFile(path, b.format, b.Bytes())
}
