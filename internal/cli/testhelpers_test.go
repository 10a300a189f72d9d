package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/device"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// toneFrames returns n 16-bit mono frames of a 440 Hz tone at 16 kHz.
func toneFrames(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(0.25 * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000.0))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func toneBuffer(frames int) audio.Buffer {
	return audio.NewBuffer(audio.CaptureFormat, []audio.Frame{toneFrames(frames)})
}

func silentBuffer(frames int) audio.Buffer {
	return audio.NewBuffer(audio.CaptureFormat, []audio.Frame{make([]byte, frames*2)})
}

// fakeInput delivers the scripted chunks, then fails with readErr or keeps
// delivering silence the way a live microphone does until it is closed.
type fakeInput struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	closed  bool
	reads   int
}

func (f *fakeInput) Read() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errors.New("input closed")
	}
	if f.reads < len(f.chunks) {
		chunk := f.chunks[f.reads]
		f.reads++
		return chunk, nil
	}
	if f.readErr != nil {
		return nil, f.readErr
	}

	f.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	f.mu.Lock()
	if f.closed {
		return nil, errors.New("input closed")
	}
	f.reads++
	return make([]byte, 4), nil
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeInput) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeOutput struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (f *fakeOutput) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, p...)
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDevice struct {
	input   *fakeInput
	output  *fakeOutput
	openErr error

	mu      sync.Mutex
	configs []device.Config
}

func (d *fakeDevice) OpenInput(_ context.Context, cfg device.Config) (device.InputStream, error) {
	d.mu.Lock()
	d.configs = append(d.configs, cfg)
	d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.input, nil
}

func (d *fakeDevice) OpenOutput(_ context.Context, cfg device.Config) (device.OutputStream, error) {
	d.mu.Lock()
	d.configs = append(d.configs, cfg)
	d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.output, nil
}

func (d *fakeDevice) opened() []device.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Config(nil), d.configs...)
}
