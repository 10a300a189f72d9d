package device

import (
	"context"
	"fmt"
	"strconv"
)

type alsaBackend struct{}

func newALSABackend() Backend {
	return &alsaBackend{}
}

func (b *alsaBackend) Name() string {
	return "alsa"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord") && commandAvailable("aplay")
}

func (b *alsaBackend) OpenInput(ctx context.Context, cfg Config) (InputStream, error) {
	args, err := alsaArgs(cfg)
	if err != nil {
		return nil, err
	}
	return startInputCommand(ctx, "arecord", args, cfg)
}

func (b *alsaBackend) OpenOutput(ctx context.Context, cfg Config) (OutputStream, error) {
	args, err := alsaArgs(cfg)
	if err != nil {
		return nil, err
	}
	return startOutputCommand(ctx, "aplay", args, cfg)
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}

func alsaArgs(cfg Config) ([]string, error) {
	sampleFormat, err := alsaSampleFormat(cfg.Format.SampleWidth)
	if err != nil {
		return nil, err
	}

	args := []string{"-q", "-t", "raw", "-f", sampleFormat, "-r", strconv.Itoa(cfg.Format.SampleRate), "-c", strconv.Itoa(cfg.Format.Channels)}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return append(args, "-"), nil
}

func alsaSampleFormat(width int) (string, error) {
	switch width {
	case 1:
		return "U8", nil
	case 2:
		return "S16_LE", nil
	case 3:
		return "S24_3LE", nil
	case 4:
		return "S32_LE", nil
	default:
		return "", fmt.Errorf("alsa: unsupported sample width %d", width)
	}
}
