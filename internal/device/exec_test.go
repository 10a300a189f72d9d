package device

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/stretchr/testify/require"
)

func writeStub(t *testing.T, dir, name, body string) {
	t.Helper()
	stub := "#!/bin/sh\nset -eu\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(stub), 0o755))
}

func stubDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	return dir
}

func waitForPath(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, timeout, 10*time.Millisecond)
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestInputCommandDeliversWholeChunks(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "recorder", "printf 'abcdefgh'\n")

	stream, err := startInputCommand(context.Background(), "recorder", nil, Config{
		Format:      audio.CaptureFormat,
		ChunkFrames: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	chunk, err := stream.Read()
	require.NoError(t, err)
	require.Equal(t, "abcd", string(chunk))

	chunk, err = stream.Read()
	require.NoError(t, err)
	require.Equal(t, "efgh", string(chunk))

	_, err = stream.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestInputCommandDropsTrailingPartialFrame(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "recorder", "printf 'abcde'\n")

	stream, err := startInputCommand(context.Background(), "recorder", nil, Config{
		Format:      audio.CaptureFormat,
		ChunkFrames: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	chunk, err := stream.Read()
	require.NoError(t, err)
	require.Equal(t, "abcd", string(chunk))

	_, err = stream.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestInputCommandReportsExitFailure(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "recorder", "echo 'no such device' >&2\nexit 3\n")

	stream, err := startInputCommand(context.Background(), "recorder", nil, Config{Format: audio.CaptureFormat})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	_, err = stream.Read()
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
	require.ErrorContains(t, err, "no such device")
}

func TestInputCommandCloseInterruptsRecorder(t *testing.T) {
	dir := stubDir(t)
	ready := filepath.Join(dir, "ready")
	t.Setenv("READY_FILE", ready)
	writeStub(t, dir, "recorder", "trap 'exit 0' INT\ntouch \"$READY_FILE\"\nwhile :; do sleep 0.02; done\n")

	stream, err := startInputCommand(context.Background(), "recorder", nil, Config{Format: audio.CaptureFormat})
	require.NoError(t, err)

	waitForPath(t, ready, time.Second)
	start := time.Now()
	require.NoError(t, stream.Close())
	require.Less(t, time.Since(start), stopTimeout)
	require.NoError(t, stream.Close())
}

func TestInputCommandCloseKillsWhenInterruptIgnored(t *testing.T) {
	dir := stubDir(t)
	ready := filepath.Join(dir, "ready")
	t.Setenv("READY_FILE", ready)
	writeStub(t, dir, "recorder", "trap '' INT\ntouch \"$READY_FILE\"\nwhile :; do sleep 0.02; done\n")

	stream, err := startInputCommand(context.Background(), "recorder", nil, Config{Format: audio.CaptureFormat})
	require.NoError(t, err)

	waitForPath(t, ready, time.Second)
	start := time.Now()
	require.NoError(t, stream.Close())
	require.Less(t, time.Since(start), stopTimeout+2*time.Second)
}

func TestStartInputCommandRejectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := startInputCommand(ctx, "recorder", nil, Config{Format: audio.CaptureFormat})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartInputCommandMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := startInputCommand(context.Background(), "recorder", nil, Config{Format: audio.CaptureFormat})
	require.ErrorContains(t, err, "start recorder")
}

func TestOutputCommandWritesAllAudioBeforeClose(t *testing.T) {
	dir := stubDir(t)
	out := filepath.Join(dir, "played.raw")
	t.Setenv("OUT_FILE", out)
	writeStub(t, dir, "player", "cat > \"$OUT_FILE\"\n")

	stream, err := startOutputCommand(context.Background(), "player", nil, Config{Format: audio.SpeechFormat})
	require.NoError(t, err)

	require.NoError(t, stream.Write([]byte("abcd")))
	require.NoError(t, stream.Write([]byte("efgh")))
	require.NoError(t, stream.Close())

	require.Equal(t, "abcdefgh", readArgs(t, out))
}

func TestOutputCommandCloseReportsPlayerFailure(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "player", "echo 'sink unavailable' >&2\nexit 2\n")

	stream, err := startOutputCommand(context.Background(), "player", nil, Config{Format: audio.SpeechFormat})
	require.NoError(t, err)

	err = stream.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "sink unavailable")
}

func TestOutputCommandWriteAfterExitFails(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "player", "exit 4\n")

	stream, err := startOutputCommand(context.Background(), "player", nil, Config{Format: audio.SpeechFormat})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	player := stream.(*execOutputStream)
	require.Eventually(t, player.proc.exited, time.Second, 10*time.Millisecond)

	err = stream.Write([]byte("abcd"))
	require.Error(t, err)
	require.ErrorContains(t, err, "player exited")
}
