package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/capture"
	"github.com/fmueller/voxtalk/internal/device"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoAudioCaptured = errors.New("no audio captured")

type recordOptions struct {
	duration time.Duration
	output   string
	input    string
	format   string
}

func newRecordCmd(app *appState) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio into a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recordFn := app.recordFn
			if recordFn == nil {
				recordFn = app.recordAudio
			}

			opts.input = app.input
			opts.format = app.inputFormat
			buf, err := recordFn(cmd.Context(), *opts)
			if err != nil {
				return err
			}

			path, err := app.recordingOutputPath(opts.output)
			if err != nil {
				return err
			}
			if err := buf.WriteWAV(path); err != nil {
				return fault.FileIO("write recording", path, err)
			}

			app.log().Info("recording saved", zap.String("path", path), zap.Duration("duration", buf.Duration()))
			app.notifyDone("Recording saved")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	bindRecordingFlags(cmd, app)
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Record duration, e.g. 6s; 0 means interactive start/stop")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output WAV file path")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	return cmd
}

func (a *appState) openDevice() (audioDevice, error) {
	fallback, err := device.DefaultFallback(a.backend)
	if err != nil {
		return nil, err
	}
	a.log().Debug("audio backends", zap.String("order", fallback.Name()))
	return fallback, nil
}

func (a *appState) captureFormat() audio.Format {
	format := audio.CaptureFormat
	if a.cfg.Capture.SampleRate > 0 {
		format.SampleRate = a.cfg.Capture.SampleRate
	}
	if a.cfg.Capture.Channels > 0 {
		format.Channels = a.cfg.Capture.Channels
	}
	return format
}

// recordAudio captures the microphone until Enter is pressed, the duration
// elapses or the device fails. Frames captured before a device failure are
// kept.
func (a *appState) recordAudio(ctx context.Context, opts recordOptions) (audio.Buffer, error) {
	interactive := opts.duration <= 0
	if interactive && a.waitFn == nil && !isTerminal(a.inReader()) {
		return audio.Buffer{}, errInteractiveRequiresTTY
	}

	dev, err := a.device()
	if err != nil {
		return audio.Buffer{}, err
	}

	waitFn := a.waitFn
	if waitFn == nil {
		waitFn = waitForEnter
	}

	if interactive && !a.immediate {
		if err := waitFn(a.inReader(), os.Stderr, "Press Enter to start recording."); err != nil {
			return audio.Buffer{}, err
		}
	}

	session := capture.NewSession(dev, capture.Options{
		Format:      a.captureFormat(),
		ChunkFrames: a.cfg.Capture.ChunkFrames,
		Device:      opts.input,
		Driver:      opts.format,
		Logger:      a.log(),
	})

	if err := session.Start(ctx); err != nil {
		return audio.Buffer{}, err
	}

	a.log().Info("recording started", zap.String("format", session.Format().String()))
	var stopProgress stopFunc
	if interactive {
		stopProgress = startSpinner(a.progressEnabled(), "Recording")
	} else {
		stopProgress = startDurationProgress(a.progressEnabled(), "Recording", opts.duration)
	}

	a.waitForStop(ctx, session, interactive, opts.duration, waitFn)
	stopProgress()

	buf, err := session.Stop()
	if err != nil {
		if buf.Empty() {
			return audio.Buffer{}, err
		}
		a.log().Warn("recording interrupted; keeping captured audio", zap.Error(err))
	}
	if buf.Empty() {
		return audio.Buffer{}, errNoAudioCaptured
	}

	a.log().Info("recording finished", zap.Int("frames", buf.FrameCount()), zap.Duration("duration", buf.Duration()))
	return buf, nil
}

// waitForStop blocks until the recording should end. A failed stop prompt
// ends the recording like Enter does.
func (a *appState) waitForStop(ctx context.Context, session *capture.Session, interactive bool, duration time.Duration, waitFn func(in io.Reader, out io.Writer, message string) error) {
	var stopCh <-chan time.Time
	if interactive {
		enter := make(chan time.Time, 1)
		go func() {
			if err := waitFn(a.inReader(), os.Stderr, "Recording... press Enter to stop."); err != nil {
				a.log().Warn("stop prompt failed; stopping recording", zap.Error(err))
			}
			enter <- a.clock()
		}()
		stopCh = enter
	} else {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		stopCh = timer.C
	}

	select {
	case <-stopCh:
	case <-session.Done():
		a.log().Debug("capture ended before stop was requested")
	case <-ctx.Done():
	}
}
