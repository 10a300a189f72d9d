// Package device opens microphone input and speaker output streams.
//
// Backends move raw interleaved PCM. Most of them drive a command line audio
// tool through pipes; the PortAudio backend talks to the host audio API
// directly and is only compiled with the portaudio build tag.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fmueller/voxtalk/internal/audio"
	"go.uber.org/zap"
)

var ErrNoBackendAvailable = errors.New("no audio backend available")

const DefaultChunkFrames = 1024

type Config struct {
	Format audio.Format
	// ChunkFrames is the number of PCM frames per device read or write.
	ChunkFrames int
	// Device selects a backend specific device; empty means the default.
	Device string
	// Driver selects the ffmpeg device driver (pulse, alsa).
	Driver string
	Logger *zap.Logger
}

func (c Config) chunkFrames() int {
	if c.ChunkFrames <= 0 {
		return DefaultChunkFrames
	}
	return c.ChunkFrames
}

func (c Config) chunkBytes() int {
	return c.chunkFrames() * c.Format.FrameSize()
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// InputStream delivers captured PCM in chunks of whole frames.
type InputStream interface {
	// Read blocks until the next chunk is available. The returned slice is
	// reused by the next call.
	Read() ([]byte, error)
	// Close releases the device. It is safe to call concurrently with Read
	// and more than once.
	Close() error
}

// OutputStream plays PCM written to it.
type OutputStream interface {
	Write(p []byte) error
	// Close waits for queued audio to finish and releases the device.
	Close() error
}

type Backend interface {
	Name() string
	Available() bool
	OpenInput(ctx context.Context, cfg Config) (InputStream, error)
	OpenOutput(ctx context.Context, cfg Config) (OutputStream, error)
	ListDevices(ctx context.Context) (string, error)
}

var extraBackends []func() Backend

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

func DefaultBackends(goos string) []Backend {
	var backends []Backend
	switch goos {
	case "linux":
		backends = []Backend{newPipeWireBackend(), newALSABackend(), newFFMPEGLinuxBackend()}
	case "darwin":
		backends = []Backend{newFFMPEGMacOSBackend()}
	}

	for _, extra := range extraBackends {
		backends = append(backends, extra())
	}
	return backends
}

func NewBackend(preferred string) (Backend, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return SelectBackend(backends, preferred)
}

func BackendNames(goos string) []string {
	var names []string
	for _, backend := range DefaultBackends(goos) {
		names = append(names, backend.Name())
	}
	return names
}

func Order(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	preferredIndex := -1
	for i, backend := range backends {
		if backend.Name() == preferred {
			preferredIndex = i
			break
		}
	}
	if preferredIndex == -1 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	ordered := make([]Backend, 0, len(backends))
	ordered = append(ordered, backends[preferredIndex])
	for i, backend := range backends {
		if i == preferredIndex {
			continue
		}
		ordered = append(ordered, backend)
	}

	return ordered, nil
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
