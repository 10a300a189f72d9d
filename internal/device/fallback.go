package device

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Fallback tries each backend in order until one opens the requested stream.
type Fallback struct {
	backends []Backend
}

func NewFallback(backends []Backend, preferred string) (*Fallback, error) {
	ordered, err := Order(backends, preferred)
	if err != nil {
		return nil, err
	}
	return &Fallback{backends: ordered}, nil
}

// DefaultFallback orders the host's backends with preferred first.
func DefaultFallback(preferred string) (*Fallback, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return NewFallback(backends, preferred)
}

func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.backends))
	for _, backend := range f.backends {
		names = append(names, backend.Name())
	}
	return strings.Join(names, ",")
}

func (f *Fallback) Available() bool {
	for _, backend := range f.backends {
		if backend.Available() {
			return true
		}
	}
	return false
}

func (f *Fallback) OpenInput(ctx context.Context, cfg Config) (InputStream, error) {
	return openWithFallback(ctx, f.backends, func(backend Backend) (InputStream, error) {
		return backend.OpenInput(ctx, cfg)
	})
}

func (f *Fallback) OpenOutput(ctx context.Context, cfg Config) (OutputStream, error) {
	return openWithFallback(ctx, f.backends, func(backend Backend) (OutputStream, error) {
		return backend.OpenOutput(ctx, cfg)
	})
}

func (f *Fallback) ListDevices(ctx context.Context) (string, error) {
	var sections []string
	for _, backend := range f.backends {
		if !backend.Available() {
			continue
		}
		out, err := backend.ListDevices(ctx)
		if err != nil {
			sections = append(sections, fmt.Sprintf("%s: %v", backend.Name(), err))
			continue
		}
		sections = append(sections, fmt.Sprintf("%s:\n%s", backend.Name(), out))
	}
	if len(sections) == 0 {
		return "", ErrNoBackendAvailable
	}
	return strings.Join(sections, "\n\n"), nil
}

func openWithFallback[S any](ctx context.Context, backends []Backend, open func(Backend) (S, error)) (S, error) {
	var zero S
	var errs []error
	for _, backend := range backends {
		if !backend.Available() {
			errs = append(errs, fmt.Errorf("%s: backend is not available", backend.Name()))
			continue
		}

		stream, err := open(backend)
		if err == nil {
			return stream, nil
		}

		err = fmt.Errorf("%s: %w", backend.Name(), err)
		errs = append(errs, err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, errors.Join(err, ctxErr)
		}
	}

	if len(errs) == 0 {
		return zero, ErrNoBackendAvailable
	}

	return zero, fmt.Errorf("open audio stream with available backends: %w", errors.Join(errs...))
}
