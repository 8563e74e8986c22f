package proc

import "golang.org/x/sys/unix"

// Shell exit-code conventions.
const (
	// StatusCannotExec is returned when a command exists but cannot be
	// executed: not a regular file, not executable, or exec itself failed.
	StatusCannotExec = 126
	// StatusNotFound is returned when no such command exists.
	StatusNotFound = 127
	// signalBase offsets signal numbers in reported statuses.
	signalBase = 128
)

// exitCode translates a wait status into the shell's exit-code
// convention: the program's own status for a normal exit, 128+signal for
// a signal death, and 128+stop-signal for a suspension.
func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return signalBase + int(ws.Signal())
	case ws.Stopped():
		return signalBase + int(ws.StopSignal())
	default:
		return 1
	}
}
