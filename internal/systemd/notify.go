// Package systemd reports service state to the service manager when
// streamforge runs as a Type=notify unit. Outside systemd every call is a
// no-op.
package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/streamforge/internal/logging"
)

// Notifier sends sd_notify state updates.
type Notifier struct {
	logger logging.Logger
	send   func(state string) (bool, error)
}

// NewNotifier creates a Notifier using NOTIFY_SOCKET from the environment.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		send: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready tells the service manager startup has finished.
func (n *Notifier) Ready() {
	n.notify(daemon.SdNotifyReady)
}

// Stopping tells the service manager shutdown has begun.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify", "state", state)
	}
}
