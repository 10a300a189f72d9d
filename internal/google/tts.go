package google

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/synth"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

type ttsClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// TextToSpeech is a synth.Provider backed by Cloud Text-to-Speech. The client
// is created on first use.
type TextToSpeech struct {
	opts      Options
	newClient func(ctx context.Context) (ttsClient, error)

	mu     sync.Mutex
	client ttsClient
}

func NewTextToSpeech(opts Options) *TextToSpeech {
	return &TextToSpeech{
		opts: opts,
		newClient: func(ctx context.Context) (ttsClient, error) {
			return texttospeech.NewClient(ctx, opts.clientOptions()...)
		},
	}
}

func (t *TextToSpeech) connect(ctx context.Context) (ttsClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}
	client, err := t.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	t.client = client
	return client, nil
}

// Synthesize returns raw 16-bit mono PCM at the speech sample rate.
func (t *TextToSpeech) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.LanguageCode,
			Name:         req.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(audio.SpeechFormat.SampleRate),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	content := resp.GetAudioContent()
	t.opts.logger().Debug("text-to-speech response", zap.Int("bytes", len(content)))
	return stripWAVHeader(content)
}

// stripWAVHeader returns the PCM payload of LINEAR16 content, which Google
// delivers wrapped in a RIFF header.
func stripWAVHeader(content []byte) ([]byte, error) {
	if len(content) < 12 || string(content[:4]) != "RIFF" || string(content[8:12]) != "WAVE" {
		return content, nil
	}

	format, pcm, err := audio.DecodeWAV(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode synthesized audio: %w", err)
	}
	if format != audio.SpeechFormat {
		return nil, fmt.Errorf("synthesized audio is %s, want %s", format, audio.SpeechFormat)
	}
	return pcm, nil
}

func (t *TextToSpeech) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
