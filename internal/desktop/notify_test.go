package desktop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stubNotify(t *testing.T, fn func(title, message, icon string) error) {
	t.Helper()
	prev := notify
	notify = fn
	t.Cleanup(func() { notify = prev })
}

func TestNotifySendsWhenEnabled(t *testing.T) {
	var gotTitle, gotMessage string
	stubNotify(t, func(title, message, _ string) error {
		gotTitle, gotMessage = title, message
		return nil
	})

	Notifier{Enabled: true}.Notify("Recording finished")
	require.Equal(t, "voxtalk", gotTitle)
	require.Equal(t, "Recording finished", gotMessage)
}

func TestNotifySkipsWhenDisabled(t *testing.T) {
	called := false
	stubNotify(t, func(string, string, string) error {
		called = true
		return nil
	})

	Notifier{}.Notify("Recording finished")
	require.False(t, called)
}

func TestNotifyIgnoresFailures(t *testing.T) {
	stubNotify(t, func(string, string, string) error { return errors.New("no dbus session") })

	require.NotPanics(t, func() {
		Notifier{Enabled: true, Logger: zap.NewNop()}.Notify("hello")
	})
}
