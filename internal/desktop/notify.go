// Package desktop raises desktop notifications for long running commands.
package desktop

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const title = "voxtalk"

var notify = beeep.Notify

type Notifier struct {
	Enabled bool
	Logger  *zap.Logger
}

// Notify shows message when notifications are enabled. Failures are logged
// and otherwise ignored; a missing notification daemon must not fail a
// command.
func (n Notifier) Notify(message string) {
	if !n.Enabled {
		return
	}
	if err := notify(title, message, ""); err != nil && n.Logger != nil {
		n.Logger.Debug("desktop notification failed", zap.Error(err))
	}
}
