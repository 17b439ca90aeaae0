// Package system restarts the appliance on request.
package system

import (
	"os"

	"go.uber.org/zap"
)

// RestartExitCode is the exit status that tells the service manager to
// start the process again.
const RestartExitCode = 3

// Restarter ends the process with RestartExitCode. The service unit is
// expected to restart it (Restart=on-failure).
type Restarter struct {
	log *zap.SugaredLogger
	// before runs ahead of the exit, e.g. to release the modem.
	before func()
	exit   func(code int)
}

// NewRestarter returns a Restarter that calls before, if set, then exits.
func NewRestarter(log *zap.SugaredLogger, before func()) *Restarter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Restarter{
		log:    log,
		before: before,
		exit:   os.Exit,
	}
}

// Restart does not return.
func (r *Restarter) Restart() {
	r.log.Warn("Device restart requested")
	if r.before != nil {
		r.before()
	}
	_ = r.log.Sync()

	r.exit(RestartExitCode)
}
