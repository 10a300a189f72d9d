//go:build portaudio

package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

func init() {
	extraBackends = append(extraBackends, newPortAudioBackend)
}

type portaudioBackend struct{}

func newPortAudioBackend() Backend {
	return &portaudioBackend{}
}

func (b *portaudioBackend) Name() string {
	return "portaudio"
}

func (b *portaudioBackend) Available() bool {
	return true
}

func (b *portaudioBackend) OpenInput(_ context.Context, cfg Config) (InputStream, error) {
	if err := checkPortAudioFormat(cfg); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	samples := make([]int16, cfg.chunkFrames()*cfg.Format.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Format.Channels, 0, float64(cfg.Format.SampleRate), cfg.chunkFrames(), samples)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio input: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio input: %w", err)
	}

	return &portaudioInput{stream: stream, samples: samples, buf: make([]byte, len(samples)*2)}, nil
}

func (b *portaudioBackend) OpenOutput(_ context.Context, cfg Config) (OutputStream, error) {
	if err := checkPortAudioFormat(cfg); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	samples := make([]int16, cfg.chunkFrames()*cfg.Format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, cfg.Format.Channels, float64(cfg.Format.SampleRate), cfg.chunkFrames(), samples)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio output: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio output: %w", err)
	}

	return &portaudioOutput{stream: stream, samples: samples}, nil
}

func (b *portaudioBackend) ListDevices(_ context.Context) (string, error) {
	if err := portaudio.Initialize(); err != nil {
		return "", fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return "", fmt.Errorf("list portaudio devices: %w", err)
	}

	lines := make([]string, 0, len(devices))
	for i, d := range devices {
		lines = append(lines, fmt.Sprintf("%d: %s (in %d, out %d, %.0f Hz)", i, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate))
	}
	return strings.Join(lines, "\n"), nil
}

func checkPortAudioFormat(cfg Config) error {
	if err := cfg.Format.Validate(); err != nil {
		return err
	}
	if cfg.Format.SampleWidth != 2 {
		return fmt.Errorf("portaudio: unsupported sample width %d", cfg.Format.SampleWidth)
	}
	if cfg.Device != "" {
		return fmt.Errorf("portaudio: device selection is not supported, got %q", cfg.Device)
	}
	return nil
}

type portaudioInput struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	samples []int16
	buf     []byte
	closed  bool
}

func (s *portaudioInput) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("portaudio input closed")
	}
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("read portaudio input: %w", err)
	}
	for i, v := range s.samples {
		binary.LittleEndian.PutUint16(s.buf[i*2:], uint16(v))
	}
	return s.buf, nil
}

func (s *portaudioInput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return closePortAudioStream(s.stream)
}

type portaudioOutput struct {
	stream  *portaudio.Stream
	samples []int16
	closed  bool
}

func (s *portaudioOutput) Write(p []byte) error {
	if s.closed {
		return fmt.Errorf("portaudio output closed")
	}

	chunk := len(s.samples) * 2
	for off := 0; off < len(p); off += chunk {
		end := min(off+chunk, len(p))
		segment := p[off:end]
		for i := range s.samples {
			if i*2+1 < len(segment) {
				s.samples[i] = int16(binary.LittleEndian.Uint16(segment[i*2:]))
			} else {
				s.samples[i] = 0
			}
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("write portaudio output: %w", err)
		}
	}
	return nil
}

func (s *portaudioOutput) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return closePortAudioStream(s.stream)
}

func closePortAudioStream(stream *portaudio.Stream) error {
	stopErr := stream.Stop()
	closeErr := stream.Close()
	termErr := portaudio.Terminate()
	switch {
	case stopErr != nil:
		return fmt.Errorf("stop portaudio stream: %w", stopErr)
	case closeErr != nil:
		return fmt.Errorf("close portaudio stream: %w", closeErr)
	case termErr != nil:
		return fmt.Errorf("terminate portaudio: %w", termErr)
	}
	return nil
}
