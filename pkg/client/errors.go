package client

import "errors"

var (
	// ErrDaemonNotRunning means the daemon socket does not exist. Start the
	// daemon with `battsense daemon` or install the service first.
	ErrDaemonNotRunning = errors.New("battsense daemon is not running: socket not found")

	// ErrPermissionDenied means the socket exists but this user may not
	// connect to it. The daemon's allowNonRootAccess setting controls this.
	ErrPermissionDenied = errors.New("permission denied connecting to the battsense daemon socket")

	// ErrNotFound wraps a 404 from the daemon, e.g. no prediction has been
	// made yet or the requested model is unknown.
	ErrNotFound = errors.New("not found")
)
