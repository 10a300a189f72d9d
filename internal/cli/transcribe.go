package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/google"
	"github.com/fmueller/voxtalk/internal/transcribe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		copyToClipboard bool
		fromMic         bool
		duration        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transcribe [audio-file]",
		Short: "Transcribe an audio file or a microphone recording",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := app.transcriptionSource(cmd.Context(), args, fromMic, duration)
			if err != nil {
				return err
			}

			transcript, err := app.engine().Transcribe(cmd.Context(), transcribe.Request{
				Source:       source,
				LanguageCode: app.language,
			})
			if err != nil {
				return err
			}

			return app.deliverTranscript(cmd.Context(), cmd.OutOrStdout(), transcript, copyToClipboard)
		},
	}

	bindRecordingFlags(cmd, app)
	bindCopyAndSilenceFlags(cmd, app)
	bindTranslateFlags(cmd, app)
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	cmd.Flags().BoolVar(&fromMic, "mic", false, "Record from the microphone instead of reading a file")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Record duration with --mic; 0 means interactive start/stop")
	return cmd
}

// transcriptionSource resolves the audio to transcribe. Exactly one of a
// file argument and --mic must be given.
func (a *appState) transcriptionSource(ctx context.Context, args []string, fromMic bool, duration time.Duration) (transcribe.Source, error) {
	var source transcribe.Source
	if len(args) == 1 {
		path := filepath.Clean(args[0])
		if _, err := os.Stat(path); err != nil {
			return transcribe.Source{}, fault.FileIO("audio file not found", path, err)
		}
		source.Path = path
	}

	if fromMic {
		if source.Path != "" {
			return transcribe.Source{}, fault.InvalidInput("ambiguous audio source: pass a file or --mic, not both")
		}

		recordFn := a.recordFn
		if recordFn == nil {
			recordFn = a.recordAudio
		}
		buf, err := recordFn(ctx, recordOptions{duration: duration, input: a.input, format: a.inputFormat})
		if err != nil {
			return transcribe.Source{}, err
		}
		source = transcribe.BufferSource(buf)
	}

	if err := source.Validate(); err != nil {
		return transcribe.Source{}, err
	}
	return source, nil
}

func (a *appState) googleOptions() google.Options {
	g := a.cfg.Google
	return google.Options{
		CredentialsFile: g.CredentialsFile,
		APIKey:          g.APIKey,
		ProjectID:       g.ProjectID,
		Region:          g.Region,
		Model:           g.Model,
		Logger:          a.log(),
	}
}

func (a *appState) transcribeAudio(ctx context.Context, req transcribe.Request) (string, error) {
	engine := google.NewSpeech(a.googleOptions())
	defer func() {
		if err := engine.Close(); err != nil {
			a.log().Debug("close speech client", zap.Error(err))
		}
	}()

	a.log().Info("transcribing...", zap.String("audio", req.Source.String()), zap.String("language", req.LanguageCode))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	transcript, err := engine.Transcribe(ctx, req)
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return transcript, nil
}
