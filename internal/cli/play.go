package cli

import (
	"context"
	"path/filepath"

	"github.com/fmueller/voxtalk/internal/playback"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPlayCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <audio-file>",
		Short: "Play a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			playFn := app.playFn
			if playFn == nil {
				playFn = app.playAudio
			}

			if _, err := playFn(cmd.Context(), filepath.Clean(args[0])); err != nil {
				return err
			}
			app.notifyDone("Playback finished")
			return nil
		},
	}

	return cmd
}

func (a *appState) playAudio(ctx context.Context, path string) (playback.Result, error) {
	dev, err := a.device()
	if err != nil {
		return playback.Result{}, err
	}

	player := playback.NewPlayer(dev, playback.Options{
		ChunkFrames: a.cfg.Playback.ChunkFrames,
		Device:      a.cfg.Playback.Device,
		Driver:      a.cfg.Playback.Driver,
		Logger:      a.log(),
	})

	a.log().Info("playing", zap.String("path", path))
	stopSpinner := startSpinner(a.progressEnabled(), "Playing")
	session := player.Play(ctx, path)
	res, err := session.Wait(ctx)
	stopSpinner()
	if err != nil {
		a.log().Warn("playback failed", zap.String("path", path), zap.Stringer("stage", res.Stage), zap.Int("frames", res.Frames), zap.Error(err))
		return res, err
	}

	a.log().Info("playback finished", zap.String("path", path), zap.String("format", res.Format.String()), zap.Int("frames", res.Frames))
	return res, nil
}
