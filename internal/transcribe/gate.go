package transcribe

import (
	"context"

	"github.com/fmueller/voxtalk/internal/audio"
	"go.uber.org/zap"
)

const DefaultSilenceDBFS = -65

// Gate skips the wrapped engine for near-silent audio and answers with
// BlankToken instead. A file source reaches the engine as its loaded PCM.
type Gate struct {
	Engine        Engine
	ThresholdDBFS float64
	Logger        *zap.Logger
}

func (g Gate) Transcribe(ctx context.Context, req Request) (string, error) {
	format, pcm, err := req.Source.Load()
	if err != nil {
		return "", err
	}
	req.Source = req.Source.preloaded(format, pcm)

	silent, metrics, err := audio.IsSilent(format, pcm, g.ThresholdDBFS)
	if err != nil {
		g.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.Stringer("audio", req.Source))
		return g.Engine.Transcribe(ctx, req)
	}
	if !silent {
		return g.Engine.Transcribe(ctx, req)
	}

	g.log().Info(
		"audio considered silent; skipping transcription",
		zap.Stringer("audio", req.Source),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", g.ThresholdDBFS),
	)
	return BlankToken, nil
}

func (g Gate) log() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
