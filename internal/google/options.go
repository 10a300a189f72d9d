// Package google implements speech synthesis and recognition on Google Cloud.
package google

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	DefaultLanguageCode = "en-US"
	DefaultModel        = "long"
)

type Options struct {
	// CredentialsFile is a service account key. Without it, and without an
	// API key, the client uses application default credentials.
	CredentialsFile string
	APIKey          string
	ProjectID       string
	// Region selects a regional speech endpoint; empty or "global" uses the
	// global one.
	Region string
	// Model is the speech recognition model.
	Model  string
	Logger *zap.Logger
}

func (o Options) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	if o.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(o.ProjectID))
	}
	return opts
}

func (o Options) regional() bool {
	region := strings.TrimSpace(o.Region)
	return region != "" && region != "global"
}

func (o Options) speechClientOptions() []option.ClientOption {
	opts := o.clientOptions()
	if o.regional() {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:443", o.Region)))
	}
	return opts
}

func (o Options) recognizer() string {
	location := "global"
	if o.regional() {
		location = o.Region
	}
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", o.ProjectID, location)
}

func (o Options) model() string {
	if o.Model == "" {
		return DefaultModel
	}
	return o.Model
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
