package proc

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// SetupShellSignals makes the shell itself immune to the job-control
// signals: Ctrl-C and Ctrl-\ must kill the foreground program, never the
// shell, and the shell must not suspend itself or stop when it writes to
// the terminal from the background.
//
// The signals are caught and discarded rather than set to SIG_IGN on
// purpose: an ignored disposition survives exec and would leak into every
// child, while a Go handler reverts to the default disposition across
// exec. That is how each pipeline stage ends up with default signal
// behavior without any child-side setup.
//
// The returned function restores normal delivery; call it at shell exit.
func SetupShellSignals() func() {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch,
		unix.SIGINT,
		unix.SIGQUIT,
		unix.SIGTSTP,
		unix.SIGTTOU,
		unix.SIGTTIN,
	)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				// Discard. The foreground process group got its copy
				// directly from the terminal driver.
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
