package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	name      string
	available bool
	openErr   error
	opened    *int
}

func (s stubBackend) Name() string    { return s.name }
func (s stubBackend) Available() bool { return s.available }

func (s stubBackend) OpenInput(context.Context, Config) (InputStream, error) {
	if s.opened != nil {
		*s.opened++
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return stubInput{name: s.name}, nil
}

func (s stubBackend) OpenOutput(context.Context, Config) (OutputStream, error) {
	if s.opened != nil {
		*s.opened++
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return stubOutput{}, nil
}

func (s stubBackend) ListDevices(context.Context) (string, error) {
	return s.name + " devices", nil
}

type stubInput struct{ name string }

func (stubInput) Read() ([]byte, error) { return nil, errors.New("not implemented") }
func (stubInput) Close() error          { return nil }

type stubOutput struct{}

func (stubOutput) Write([]byte) error { return nil }
func (stubOutput) Close() error       { return nil }

func TestSelectBackendUsesPriorityOrder(t *testing.T) {
	t.Parallel()

	backend, err := SelectBackend([]Backend{
		stubBackend{name: "pipewire", available: false},
		stubBackend{name: "alsa", available: true},
		stubBackend{name: "ffmpeg", available: true},
	}, "auto")
	require.NoError(t, err)
	require.Equal(t, "alsa", backend.Name())
}

func TestSelectBackendUsesPreferredWhenAvailable(t *testing.T) {
	t.Parallel()

	backend, err := SelectBackend([]Backend{
		stubBackend{name: "pipewire", available: true},
		stubBackend{name: "alsa", available: true},
	}, "alsa")
	require.NoError(t, err)
	require.Equal(t, "alsa", backend.Name())
}

func TestSelectBackendReturnsErrorWhenUnavailable(t *testing.T) {
	t.Parallel()

	_, err := SelectBackend([]Backend{
		stubBackend{name: "pipewire", available: false},
	}, "pipewire")
	require.Error(t, err)
}

func TestSelectBackendReturnsErrorWhenNoBackendAvailable(t *testing.T) {
	t.Parallel()

	_, err := SelectBackend([]Backend{
		stubBackend{name: "pipewire", available: false},
		stubBackend{name: "alsa", available: false},
	}, "auto")
	require.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestOrderMovesPreferredFirst(t *testing.T) {
	t.Parallel()

	ordered, err := Order([]Backend{
		stubBackend{name: "pipewire"},
		stubBackend{name: "alsa"},
		stubBackend{name: "ffmpeg"},
	}, "ffmpeg")
	require.NoError(t, err)

	names := make([]string, 0, len(ordered))
	for _, backend := range ordered {
		names = append(names, backend.Name())
	}
	require.Equal(t, []string{"ffmpeg", "pipewire", "alsa"}, names)
}

func TestOrderRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Order([]Backend{stubBackend{name: "alsa"}}, "oss")
	require.ErrorContains(t, err, `unknown backend "oss"`)
}

func TestDefaultBackendsForLinux(t *testing.T) {
	t.Parallel()

	names := BackendNames("linux")
	require.GreaterOrEqual(t, len(names), 3)
	require.Equal(t, []string{"pipewire", "alsa", "ffmpeg"}, names[:3])
}

func TestDefaultBackendsForUnsupportedOS(t *testing.T) {
	t.Parallel()

	for _, backend := range DefaultBackends("plan9") {
		require.NotContains(t, []string{"pipewire", "alsa", "ffmpeg"}, backend.Name())
	}
}

func TestFallbackOpensFirstWorkingBackend(t *testing.T) {
	t.Parallel()

	var failedOpens, workingOpens int
	fallback, err := NewFallback([]Backend{
		stubBackend{name: "pipewire", available: false},
		stubBackend{name: "alsa", available: true, openErr: errors.New("device busy"), opened: &failedOpens},
		stubBackend{name: "ffmpeg", available: true, opened: &workingOpens},
	}, "auto")
	require.NoError(t, err)

	stream, err := fallback.OpenInput(context.Background(), Config{})
	require.NoError(t, err)
	require.Equal(t, stubInput{name: "ffmpeg"}, stream)
	require.Equal(t, 1, failedOpens)
	require.Equal(t, 1, workingOpens)
}

func TestFallbackJoinsErrorsWhenAllBackendsFail(t *testing.T) {
	t.Parallel()

	fallback, err := NewFallback([]Backend{
		stubBackend{name: "pipewire", available: false},
		stubBackend{name: "alsa", available: true, openErr: errors.New("device busy")},
	}, "auto")
	require.NoError(t, err)

	_, err = fallback.OpenOutput(context.Background(), Config{})
	require.Error(t, err)
	require.ErrorContains(t, err, "pipewire: backend is not available")
	require.ErrorContains(t, err, "alsa: device busy")
}

func TestFallbackStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	var opens int
	fallback, err := NewFallback([]Backend{
		stubBackend{name: "alsa", available: true, openErr: errors.New("interrupted"), opened: &opens},
		stubBackend{name: "ffmpeg", available: true, opened: &opens},
	}, "auto")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fallback.OpenInput(ctx, Config{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, opens)
}

func TestFallbackListDevicesSkipsUnavailable(t *testing.T) {
	t.Parallel()

	fallback, err := NewFallback([]Backend{
		stubBackend{name: "pipewire", available: false},
		stubBackend{name: "alsa", available: true},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "pipewire,alsa", fallback.Name())

	out, err := fallback.ListDevices(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alsa:\nalsa devices", out)
}

func TestFallbackListDevicesWithoutBackends(t *testing.T) {
	t.Parallel()

	fallback, err := NewFallback([]Backend{stubBackend{name: "alsa"}}, "")
	require.NoError(t, err)
	require.False(t, fallback.Available())

	_, err = fallback.ListDevices(context.Background())
	require.ErrorIs(t, err, ErrNoBackendAvailable)
}
