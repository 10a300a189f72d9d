package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/voxtalk/internal/google"
	"github.com/fmueller/voxtalk/internal/platform"
	"github.com/fmueller/voxtalk/internal/synth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type speakOptions struct {
	voice         string
	voiceLanguage string
	output        string
	noPlay        bool
}

func newSpeakCmd(app *appState) *cobra.Command {
	opts := &speakOptions{}

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Synthesize speech from text and play it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := app.textInput(args)
			if err != nil {
				return err
			}

			return app.speak(cmd.Context(), cmd, text, *opts)
		},
	}

	cmd.Flags().StringVar(&opts.voice, "voice", "", "Voice name, e.g. en-US-Wavenet-D (default from config)")
	cmd.Flags().StringVar(&opts.voiceLanguage, "voice-language", "", "Voice language code, e.g. en-US (default from config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output WAV file path (default is a unique file in the speech directory)")
	cmd.Flags().BoolVar(&opts.noPlay, "no-play", false, "Only synthesize; do not play the result")
	return cmd
}

func (a *appState) speak(ctx context.Context, cmd *cobra.Command, text string, opts speakOptions) error {
	synthesizeFn := a.synthesizeFn
	if synthesizeFn == nil {
		synthesizeFn = a.synthesizeSpeech
	}

	res, err := synthesizeFn(ctx, text, a.voice(opts), opts.output)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Path)

	if opts.noPlay {
		a.notifyDone("Speech saved")
		return nil
	}

	playFn := a.playFn
	if playFn == nil {
		playFn = a.playAudio
	}
	if _, err := playFn(ctx, res.Path); err != nil {
		return err
	}
	a.notifyDone("Playback finished")
	return nil
}

// voice picks the flag values over the configured voice. The synthesizer
// fills in whatever is still empty.
func (a *appState) voice(opts speakOptions) synth.VoiceConfig {
	voice := synth.VoiceConfig{Name: a.cfg.Speech.Voice, LanguageCode: a.cfg.Speech.Language}
	if v := strings.TrimSpace(opts.voice); v != "" {
		voice.Name = v
	}
	if l := strings.TrimSpace(opts.voiceLanguage); l != "" {
		voice.LanguageCode = l
	}
	return voice
}

func (a *appState) synthesizeSpeech(ctx context.Context, text string, voice synth.VoiceConfig, output string) (synth.Result, error) {
	dir, err := platform.ResolveSpeechDir(a.cfg.Speech.OutputDir)
	if err != nil {
		return synth.Result{}, err
	}

	provider := google.NewTextToSpeech(a.googleOptions())
	defer func() {
		if err := provider.Close(); err != nil {
			a.log().Debug("close text-to-speech client", zap.Error(err))
		}
	}()

	synthesizer := synth.New(provider, synth.Options{OutputPath: output, OutputDir: dir, Logger: a.log()})

	a.log().Info("synthesizing...", zap.String("voice", voice.Name), zap.String("language", voice.LanguageCode))
	stopSpinner := startSpinner(a.progressEnabled(), "Synthesizing")
	started := time.Now()

	task := synthesizer.Start(ctx, text, voice)
	res, err := task.Wait(ctx)
	stopSpinner()
	if err != nil {
		a.log().Warn("synthesis failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return synth.Result{}, err
	}
	a.log().Info("synthesis finished", zap.String("path", res.Path), zap.Duration("elapsed", time.Since(started)))
	return res, nil
}
