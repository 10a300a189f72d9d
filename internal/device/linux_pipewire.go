package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

type pipewireBackend struct{}

func newPipeWireBackend() Backend {
	return &pipewireBackend{}
}

func (b *pipewireBackend) Name() string {
	return "pipewire"
}

func (b *pipewireBackend) Available() bool {
	return commandAvailable("pw-record") && commandAvailable("pw-play")
}

func (b *pipewireBackend) OpenInput(ctx context.Context, cfg Config) (InputStream, error) {
	args, err := pipewireArgs(cfg)
	if err != nil {
		return nil, err
	}
	return startInputCommand(ctx, "pw-record", args, cfg)
}

func (b *pipewireBackend) OpenOutput(ctx context.Context, cfg Config) (OutputStream, error) {
	args, err := pipewireArgs(cfg)
	if err != nil {
		return nil, err
	}
	return startOutputCommand(ctx, "pw-play", args, cfg)
}

func (b *pipewireBackend) ListDevices(ctx context.Context) (string, error) {
	if commandAvailable("pw-cli") {
		return commandOutput(ctx, "pw-cli", "ls", "Node")
	}

	if out, err := commandOutput(ctx, "pw-record", "--list-targets"); err == nil {
		return out, nil
	}

	if commandAvailable("pactl") {
		return commandOutput(ctx, "pactl", "list", "short", "sources")
	}

	return "", errors.New("no pipewire device listing command available")
}

func pipewireArgs(cfg Config) ([]string, error) {
	sampleFormat, err := pipewireSampleFormat(cfg.Format.SampleWidth)
	if err != nil {
		return nil, err
	}

	args := []string{"--raw", "--rate", strconv.Itoa(cfg.Format.SampleRate), "--channels", strconv.Itoa(cfg.Format.Channels), "--format", sampleFormat}
	if cfg.Device != "" {
		args = append(args, "--target", cfg.Device)
	}
	return append(args, "-"), nil
}

func pipewireSampleFormat(width int) (string, error) {
	switch width {
	case 1:
		return "u8", nil
	case 2:
		return "s16", nil
	case 3:
		return "s24", nil
	case 4:
		return "s32", nil
	default:
		return "", fmt.Errorf("pipewire: unsupported sample width %d", width)
	}
}
