package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/config"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/playback"
	"github.com/fmueller/voxtalk/internal/synth"
	"github.com/stretchr/testify/require"
)

type speakRecorder struct {
	order []string
	voice synth.VoiceConfig
}

func (r *speakRecorder) app() *appState {
	return &appState{
		cfg: config.Default(),
		synthesizeFn: func(_ context.Context, text string, voice synth.VoiceConfig, output string) (synth.Result, error) {
			r.order = append(r.order, "synthesize:"+text)
			r.voice = voice
			path := output
			if path == "" {
				path = "/tmp/speech-1.wav"
			}
			return synth.Result{Path: path, Format: audio.SpeechFormat}, nil
		},
		playFn: func(_ context.Context, path string) (playback.Result, error) {
			r.order = append(r.order, "play:"+path)
			return playback.Result{Path: path}, nil
		},
		notifyFn: func(message string) {
			r.order = append(r.order, "notify:"+message)
		},
	}
}

func TestSpeakSynthesizesThenPlays(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	cmd := newSpeakCmd(rec.app())
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"hello", "there"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "/tmp/speech-1.wav\n", out.String())
	require.Equal(t, []string{
		"synthesize:hello there",
		"play:/tmp/speech-1.wav",
		"notify:Playback finished",
	}, rec.order)
	require.Equal(t, synth.VoiceConfig{Name: "en-US-Wavenet-D", LanguageCode: "en-US"}, rec.voice)
}

func TestSpeakFlagsOverrideConfiguredVoice(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	cmd := newSpeakCmd(rec.app())
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--voice", "de-DE-Wavenet-B", "--voice-language", "de-DE", "--output", "/tmp/hallo.wav", "--no-play", "hallo"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, synth.VoiceConfig{Name: "de-DE-Wavenet-B", LanguageCode: "de-DE"}, rec.voice)
	require.Equal(t, []string{"synthesize:hallo", "notify:Speech saved"}, rec.order)
}

func TestSpeakReadsTextFromStdin(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	app := rec.app()
	app.in = strings.NewReader("  from stdin\n")
	cmd := newSpeakCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--no-play"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "synthesize:from stdin", rec.order[0])
}

func TestSpeakRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	app := rec.app()
	app.in = strings.NewReader("   ")
	cmd := newSpeakCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.ErrorIs(t, err, fault.ErrInvalidInput)
	require.Empty(t, rec.order)
}

func TestSpeakSynthesisFailureSkipsPlayback(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	app := rec.app()
	app.synthesizeFn = func(context.Context, string, synth.VoiceConfig, string) (synth.Result, error) {
		return synth.Result{}, fault.Provider("synthesize speech", errors.New("quota exceeded"))
	}
	cmd := newSpeakCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"hello"})

	err := cmd.Execute()
	require.ErrorIs(t, err, fault.ErrProvider)
	require.Empty(t, rec.order)
}

func TestSpeakPlaybackFailureIsReturned(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	app := rec.app()
	app.playFn = func(context.Context, string) (playback.Result, error) {
		return playback.Result{Stage: playback.StageWrite}, fault.Device("write output device", errors.New("broken pipe"))
	}
	cmd := newSpeakCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"hello"})

	err := cmd.Execute()
	require.ErrorIs(t, err, fault.ErrDevice)
	require.Equal(t, []string{"synthesize:hello"}, rec.order)
}
