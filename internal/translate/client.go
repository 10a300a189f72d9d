// Package translate talks to the translation HTTP service.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:7060/translate"
	DefaultTargetLanguage = "es"
	DefaultTimeout        = 30 * time.Second
)

type Options struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

type Client struct {
	endpoint string
	http     *resty.Client
	logger   *zap.Logger
}

type request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type response struct {
	TranslatedText string `json:"translated_text"`
}

func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{endpoint: opts.Endpoint, http: httpClient, logger: logger}
}

// Translate sends text to the service and returns the translation. An empty
// target language means DefaultTargetLanguage.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fault.InvalidInput("no text to translate")
	}
	if targetLanguage == "" {
		targetLanguage = DefaultTargetLanguage
	}

	c.logger.Debug("translating", zap.String("endpoint", c.endpoint), zap.String("target_language", targetLanguage), zap.Int("chars", len(text)))

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Text: text, TargetLanguage: targetLanguage}).
		Post(c.endpoint)
	if err != nil {
		return "", fault.Provider("translation request", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fault.Provider(fmt.Sprintf("translation failed: status %d", resp.StatusCode()), nil)
	}

	var out response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fault.Provider("decode translation response", err)
	}
	return out.TranslatedText, nil
}
