//go:build linux

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDevicesEndToEndAllBackends(t *testing.T) {
	stubDir := t.TempDir()
	writeStub(t, stubDir, "pw-record", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "pw-play", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "pw-cli", "#!/bin/sh\necho 'id 42, type PipeWire:Interface:Node'\necho 'node.name = \"alsa_input.usb\"'\n")
	writeStub(t, stubDir, "arecord", stubScript("default\nhw:0,0\n"))
	writeStub(t, stubDir, "aplay", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "ffmpeg", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "pactl", "#!/bin/sh\necho '1\talsa_output.pci monitor'\n")

	t.Setenv("PATH", stubDir)

	stdout, _, err := runCommand(t, []string{"devices"})
	require.NoError(t, err)

	require.Contains(t, stdout, "== pipewire ==")
	require.Contains(t, stdout, "== alsa ==")
	require.Contains(t, stdout, "== ffmpeg ==")

	require.Contains(t, stdout, "alsa_input.usb")
	require.Contains(t, stdout, "hw:0,0")
	require.Contains(t, stdout, "alsa_output.pci monitor")
}

func TestDevicesEndToEndPartialAvailability(t *testing.T) {
	stubDir := t.TempDir()
	writeStub(t, stubDir, "arecord", stubScript("default\nhw:0,0\n"))
	writeStub(t, stubDir, "aplay", "#!/bin/sh\nexit 0\n")

	t.Setenv("PATH", stubDir)

	stdout, _, err := runCommand(t, []string{"devices"})
	require.NoError(t, err)

	require.Contains(t, stdout, "== pipewire ==")
	require.Contains(t, stdout, "not available on PATH")

	require.Contains(t, stdout, "== alsa ==")
	require.Contains(t, stdout, "hw:0,0")

	require.Contains(t, stdout, "== ffmpeg ==")
}

func TestDevicesEndToEndCommandFailure(t *testing.T) {
	stubDir := t.TempDir()
	writeStub(t, stubDir, "pw-record", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "pw-play", "#!/bin/sh\nexit 0\n")
	writeStub(t, stubDir, "pw-cli", "#!/bin/sh\nexit 1\n")

	t.Setenv("PATH", stubDir)

	stdout, _, err := runCommand(t, []string{"devices"})
	require.NoError(t, err)

	require.Contains(t, stdout, "== pipewire ==")
	require.Contains(t, stdout, "failed to list devices")
}

func TestDevicesReportsSelectedBackend(t *testing.T) {
	stubDir := t.TempDir()
	t.Setenv("PATH", stubDir)

	stdout, _, err := runCommand(t, []string{"--backend", "alsa", "devices"})
	require.NoError(t, err)
	require.Contains(t, stdout, `selected backend: requested backend "alsa" is not available`)
}

func writeStub(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o755))
}

func stubScript(output string) string {
	return "#!/bin/sh\necho '" + output + "'\n"
}
