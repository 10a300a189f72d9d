package audio

import (
	"math"
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilent reports whether the payload stays below thresholdDBFS. The peak
// gate sits 6 dB above the RMS threshold so isolated clicks do not count as
// speech.
func IsSilent(format Format, pcm []byte, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := Measure(format, pcm)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}

	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

func Measure(format Format, pcm []byte) (SilenceMetrics, error) {
	if err := format.Validate(); err != nil {
		return SilenceMetrics{}, err
	}

	width := format.SampleWidth
	var peak float64
	var sumSquares float64
	var samples int64

	for i := 0; i+width <= len(pcm); i += width {
		value := normalizeSample(pcm[i : i+width])
		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
		samples++
	}

	if samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}

	rms := math.Sqrt(sumSquares / float64(samples))
	return SilenceMetrics{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  samples,
	}, nil
}

func normalizeSample(sample []byte) float64 {
	v := float64(sampleToInt(sample))
	switch len(sample) {
	case 1:
		return (v - 128.0) / 128.0
	case 2:
		return v / 32768.0
	case 3:
		return v / 8388608.0
	default:
		return v / 2147483648.0
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
