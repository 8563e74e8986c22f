package proc

import (
	"errors"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// isBenignJoinError reports whether a setpgid failure is one of the
// expected race outcomes: the child already entered the group (or its own
// group) before the parent's call landed, or the child is already gone.
// These are not errors; retrying them is pointless.
func isBenignJoinError(err error) bool {
	return errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.EPERM) ||
		errors.Is(err, unix.ESRCH)
}

// joinGroupRetry is the shared policy for confirming group membership
// from the parent side: up to 10 attempts, 5ms apart, bailing out on the
// benign race errors.
var joinGroupRetry = retryPolicy{
	attempts: 10,
	delay:    5 * time.Millisecond,
	terminal: isBenignJoinError,
}

// joinGroup places pid into the process group pgid from the parent side.
// A pgid of zero makes pid the leader of its own new group. The kernel
// already performed the same setpgid in the child between fork and exec;
// this call closes the window where the parent acts on the group (terminal
// handoff, group wait) before the child's half has landed. Failures are
// benign by construction and at most logged.
func joinGroup(pid, pgid int) {
	if pid <= 0 {
		return
	}
	if pgid == 0 {
		pgid = pid
	}

	err := joinGroupRetry.do(func() error {
		return unix.Setpgid(pid, pgid)
	})
	if err != nil && !isBenignJoinError(err) {
		log.Printf("setpgid(%d, %d): %v", pid, pgid, err)
	}
}

// giveTerminal makes pgid the foreground process group on the controlling
// terminal. Never fatal: the shell itself may be running in the
// background, or there may be no terminal at all.
func (s *Session) giveTerminal(pgid int) {
	if s.TTY < 0 || pgid <= 0 {
		return
	}
	if err := unix.IoctlSetPointerInt(s.TTY, unix.TIOCSPGRP, pgid); err != nil {
		s.debugf("tcsetpgrp(%d): %v", pgid, err)
	}
}

// reclaimTerminal restores the shell's own group as foreground. Called
// unconditionally once a pipeline finishes, stops, or fails.
func (s *Session) reclaimTerminal() {
	if s.TTY < 0 || s.ShellPgid <= 0 {
		return
	}
	if err := unix.IoctlSetPointerInt(s.TTY, unix.TIOCSPGRP, s.ShellPgid); err != nil {
		s.debugf("tcsetpgrp(shell %d): %v", s.ShellPgid, err)
	}
}
