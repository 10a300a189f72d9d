package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu    sync.Mutex
	pcm   []byte
	err   error
	calls []Request
}

func (p *stubProvider) Synthesize(_ context.Context, req Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return p.pcm, p.err
}

func waitTask(t *testing.T, task *Task) Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, _ := task.Wait(ctx)
	require.NoError(t, ctx.Err())
	return res
}

func runTask(t *testing.T, s *Synthesizer, text string, voice VoiceConfig) (Result, error) {
	t.Helper()
	res := waitTask(t, s.Start(context.Background(), text, voice))
	return res, res.Err
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestStartWritesSpeechWAV(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x34, 0x12}
	dir := t.TempDir()
	provider := &stubProvider{pcm: payload}

	task := New(provider, Options{OutputDir: dir}).Start(context.Background(), "hello there", DefaultVoice)
	res := waitTask(t, task)

	require.NoError(t, res.Err)
	require.Equal(t, Succeeded, task.State())
	require.Equal(t, dir, filepath.Dir(res.Path))
	require.Regexp(t, `^speech-[0-9a-f-]{36}\.wav$`, filepath.Base(res.Path))

	format, pcm, err := audio.ReadWAV(res.Path)
	require.NoError(t, err)
	require.Equal(t, audio.Format{SampleRate: 24000, Channels: 1, SampleWidth: 2}, format)
	require.Equal(t, payload, pcm)
	require.Equal(t, []string{filepath.Base(res.Path)}, dirEntries(t, dir))
}

func TestProviderFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	providerErr := errors.New("quota exceeded")

	task := New(&stubProvider{err: providerErr}, Options{OutputDir: dir}).Start(context.Background(), "hello", DefaultVoice)
	res := waitTask(t, task)

	require.ErrorIs(t, res.Err, fault.ErrProvider)
	require.ErrorIs(t, res.Err, providerErr)
	require.Empty(t, res.Path)
	require.Equal(t, Failed, task.State())
	require.Empty(t, dirEntries(t, dir))
}

func TestEmptyTextIsInvalidInput(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{pcm: []byte{0, 0}}
	_, err := runTask(t, New(provider, Options{OutputDir: t.TempDir()}), "   ", DefaultVoice)

	require.ErrorIs(t, err, fault.ErrInvalidInput)
	require.Empty(t, provider.calls)
}

func TestOddLengthPCMIsProviderError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := runTask(t, New(&stubProvider{pcm: []byte{1, 2, 3}}, Options{OutputDir: dir}), "hi", DefaultVoice)

	require.ErrorIs(t, err, fault.ErrProvider)
	require.ErrorContains(t, err, "not 16-bit aligned")
	require.Empty(t, dirEntries(t, dir))
}

func TestEmptyPCMIsProviderError(t *testing.T) {
	t.Parallel()

	_, err := runTask(t, New(&stubProvider{}, Options{OutputDir: t.TempDir()}), "hi", DefaultVoice)
	require.ErrorIs(t, err, fault.ErrProvider)
}

func TestRunUsesCallerOutputPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "greeting.wav")
	res, err := runTask(t, New(&stubProvider{pcm: []byte{5, 0}}, Options{OutputPath: path}), "hi", VoiceConfig{})

	require.NoError(t, err)
	require.Equal(t, path, res.Path)
	_, pcm, err := audio.ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 0}, pcm)
}

func TestRunFillsDefaultVoice(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{pcm: []byte{0, 0}}
	_, err := runTask(t, New(provider, Options{OutputDir: t.TempDir()}), "  hola  ", VoiceConfig{LanguageCode: "es-ES"})
	require.NoError(t, err)

	require.Equal(t, []Request{{Text: "hola", VoiceName: "en-US-Wavenet-D", LanguageCode: "es-ES"}}, provider.calls)
}

func TestConcurrentTasksWriteSeparateFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	synth := New(&stubProvider{pcm: []byte{1, 0, 2, 0}}, Options{OutputDir: dir})

	first := synth.Start(context.Background(), "one", DefaultVoice)
	second := synth.Start(context.Background(), "two", DefaultVoice)

	a := waitTask(t, first)
	b := waitTask(t, second)
	require.NoError(t, a.Err)
	require.NoError(t, b.Err)
	require.NotEqual(t, a.Path, b.Path)
	require.Len(t, dirEntries(t, dir), 2)
}

func TestTaskDeliversOneResult(t *testing.T) {
	t.Parallel()

	task := New(&stubProvider{err: errors.New("boom")}, Options{OutputDir: t.TempDir()}).Start(context.Background(), "x", DefaultVoice)
	<-task.Done()

	first, ok := task.Result()
	require.True(t, ok)
	second, ok := task.Result()
	require.True(t, ok)
	require.Equal(t, first, second)
	require.Error(t, first.Err)
	require.Empty(t, first.Path)
}
