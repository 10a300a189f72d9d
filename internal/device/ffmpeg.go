package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ffmpegLinuxBackend struct{}

func newFFMPEGLinuxBackend() Backend {
	return &ffmpegLinuxBackend{}
}

func (b *ffmpegLinuxBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegLinuxBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b *ffmpegLinuxBackend) OpenInput(ctx context.Context, cfg Config) (InputStream, error) {
	driver := linuxDriver(cfg.Driver)
	input := cfg.Device
	if input == "" {
		input = "default"
	}

	args, err := ffmpegCaptureArgs(driver, input, cfg)
	if err != nil {
		return nil, err
	}
	return startInputCommand(ctx, "ffmpeg", args, cfg)
}

func (b *ffmpegLinuxBackend) OpenOutput(ctx context.Context, cfg Config) (OutputStream, error) {
	driver := linuxDriver(cfg.Driver)
	output := cfg.Device
	if output == "" {
		output = "default"
	}

	var deviceArgs []string
	if driver == "pulse" {
		deviceArgs = []string{"-f", "pulse"}
		if cfg.Device != "" {
			deviceArgs = append(deviceArgs, "-device", cfg.Device)
		}
		deviceArgs = append(deviceArgs, "voxtalk")
	} else {
		deviceArgs = []string{"-f", driver, output}
	}

	args, err := ffmpegPlaybackArgs(deviceArgs, cfg)
	if err != nil {
		return nil, err
	}
	return startOutputCommand(ctx, "ffmpeg", args, cfg)
}

func (b *ffmpegLinuxBackend) ListDevices(ctx context.Context) (string, error) {
	var sections []string

	if commandAvailable("pactl") {
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
		}
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sinks"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sinks:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sinks: "+err.Error())
		}
	}

	if commandAvailable("arecord") {
		if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
			sections = append(sections, "ALSA devices:\n"+out)
		} else {
			sections = append(sections, "ALSA devices: "+err.Error())
		}
	}

	if len(sections) == 0 {
		return "", errors.New("no device listing command available")
	}

	return strings.Join(sections, "\n\n"), nil
}

type ffmpegMacBackend struct{}

func newFFMPEGMacOSBackend() Backend {
	return &ffmpegMacBackend{}
}

func (b *ffmpegMacBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegMacBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b *ffmpegMacBackend) OpenInput(ctx context.Context, cfg Config) (InputStream, error) {
	input := cfg.Device
	if input == "" {
		input = ":0"
	}

	args, err := ffmpegCaptureArgs("avfoundation", input, cfg)
	if err != nil {
		return nil, err
	}
	return startInputCommand(ctx, "ffmpeg", args, cfg)
}

func (b *ffmpegMacBackend) OpenOutput(ctx context.Context, cfg Config) (OutputStream, error) {
	deviceArgs := []string{"-f", "audiotoolbox"}
	if cfg.Device != "" {
		deviceArgs = append(deviceArgs, "-audio_device_index", cfg.Device)
	}
	deviceArgs = append(deviceArgs, "-")

	args, err := ffmpegPlaybackArgs(deviceArgs, cfg)
	if err != nil {
		return nil, err
	}
	return startOutputCommand(ctx, "ffmpeg", args, cfg)
}

func (b *ffmpegMacBackend) ListDevices(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	out, _ := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return "", fmt.Errorf("ffmpeg returned no device output")
	}
	return trimmed, nil
}

func ffmpegCaptureArgs(driver, input string, cfg Config) ([]string, error) {
	codec, err := ffmpegSampleFormat(cfg.Format.SampleWidth)
	if err != nil {
		return nil, err
	}

	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", driver, "-i", input,
		"-ac", strconv.Itoa(cfg.Format.Channels),
		"-ar", strconv.Itoa(cfg.Format.SampleRate),
		"-f", codec, "-",
	}, nil
}

func ffmpegPlaybackArgs(deviceArgs []string, cfg Config) ([]string, error) {
	codec, err := ffmpegSampleFormat(cfg.Format.SampleWidth)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", codec,
		"-ar", strconv.Itoa(cfg.Format.SampleRate),
		"-ac", strconv.Itoa(cfg.Format.Channels),
		"-i", "pipe:0",
	}
	return append(args, deviceArgs...), nil
}

func ffmpegSampleFormat(width int) (string, error) {
	switch width {
	case 1:
		return "u8", nil
	case 2:
		return "s16le", nil
	case 3:
		return "s24le", nil
	case 4:
		return "s32le", nil
	default:
		return "", fmt.Errorf("ffmpeg: unsupported sample width %d", width)
	}
}

func linuxDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "alsa":
		return "alsa"
	default:
		return "pulse"
	}
}
