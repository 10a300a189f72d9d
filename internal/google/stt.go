package google

import (
	"context"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/transcribe"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Speech is a transcribe.Engine backed by Cloud Speech-to-Text v2.
type Speech struct {
	opts      Options
	newClient func(ctx context.Context) (recognizeClient, error)

	mu     sync.Mutex
	client recognizeClient
}

func NewSpeech(opts Options) *Speech {
	return &Speech{
		opts: opts,
		newClient: func(ctx context.Context) (recognizeClient, error) {
			return speech.NewClient(ctx, opts.speechClientOptions()...)
		},
	}
}

func (s *Speech) connect(ctx context.Context) (recognizeClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	client, err := s.newClient(ctx)
	if err != nil {
		return nil, fault.Provider("create speech client", err)
	}
	s.client = client
	return client, nil
}

func (s *Speech) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	format, pcm, err := req.Source.Load()
	if err != nil {
		return "", err
	}
	if format.SampleWidth != 2 {
		return "", fault.InvalidInput(fmt.Sprintf("speech recognition needs 16-bit audio, got %d-bit", format.BitDepth()))
	}

	if s.opts.ProjectID == "" {
		return "", fault.InvalidInput("speech recognition needs a Google Cloud project id")
	}

	client, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	language := req.LanguageCode
	if language == "" {
		language = DefaultLanguageCode
	}

	s.opts.logger().Debug("recognizing speech",
		zap.Stringer("audio", req.Source),
		zap.Stringer("format", format),
		zap.String("language", language),
		zap.String("recognizer", s.opts.recognizer()),
	)

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: s.opts.recognizer(),
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(format.SampleRate),
					AudioChannelCount: int32(format.Channels),
				},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
			},
			LanguageCodes: []string{language},
			Model:         s.opts.model(),
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: pcm},
	})
	if err != nil {
		return "", fault.Provider("recognize speech", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (s *Speech) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
