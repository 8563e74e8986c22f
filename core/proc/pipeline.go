package proc

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/thrash-sh/thrash/core/logger"
)

// RunPipeline executes an ordered list of parsed commands as one
// pipeline and returns a single shell exit code: 0-125 for a normal
// exit, 126 for found-but-not-executable, 127 for not-found, and
// 128+signal for a signal death or suspension.
//
// The commands are borrowed: RunPipeline never mutates them and never
// keeps a reference past its return. All failures are resolved to the
// returned code; nothing escapes as an error value. On every return
// path the pipe set is released, the terminal is back with the shell,
// and PipelinePgid is cleared.
func (s *Session) RunPipeline(cmds []*Command) int {
	if len(cmds) == 0 {
		return 0
	}

	s.record(&logger.PipelineStart{Cmdline: Cmdline(cmds), Stages: len(cmds)})

	var status int
	if len(cmds) == 1 {
		status = s.runSingle(cmds[0])
	} else {
		status = s.runStages(cmds)
	}

	s.LastStatus = status
	s.record(&logger.PipelineExit{Cmdline: Cmdline(cmds), Status: status})
	return status
}

// runSingle is the N=1 fast path: no pipes, builtins without a fork, and
// a pre-fork resolution check happens implicitly inside launch.
func (s *Session) runSingle(cmd *Command) int {
	if cmd.Empty() {
		return 0
	}

	if action, status := s.handleBuiltin(cmd, 1); action != notBuiltin {
		return status
	}

	proc, status := s.launch(cmd, s.Stdin, s.Stdout, s.Stderr, 0)
	if proc == nil {
		if status == launchFailed {
			status = 1
		}
		s.PipelinePgid = 0
		return status
	}

	pgid := proc.Pid
	s.PipelinePgid = pgid
	joinGroup(proc.Pid, 0)

	if cmd.Background {
		j := s.AddJob(pgid, cmd.String(), false)
		s.debugf("started background job [%d] pgid=%d", j.ID, pgid)
		s.PipelinePgid = 0
		return 0
	}

	s.giveTerminal(pgid)
	code, stopped := s.waitGroup(pgid, proc.Pid)

	s.reclaimTerminal()
	if stopped {
		s.LastPgid = pgid
		s.AddJob(pgid, cmd.String(), true)
		s.record(&logger.JobStopped{Pgid: pgid, Signal: code - signalBase})
	}
	s.PipelinePgid = 0
	return code
}

// runStages is the general N>1 case.
func (s *Session) runStages(cmds []*Command) int {
	n := len(cmds)

	pipes, err := NewPipeSet(n)
	if err != nil {
		s.errorf("pipe: %v", err)
		return 1
	}

	pids := make([]int, n)
	for i := range pids {
		pids[i] = -1
	}

	pgid := 0
	launched := 0
	lastPid := -1
	// Status a trailing builtin or failed stage leaves behind when the
	// wait loop has nothing newer to say.
	trailingStatus := 0

	for i, cmd := range cmds {
		if cmd.Empty() {
			s.debugf("pipeline: skipping empty stage %d", i)
			continue
		}

		if action, status := s.handleBuiltin(cmd, n); action != notBuiltin {
			trailingStatus = status
			if action == builtinExit {
				// Unreachable for n > 1; exit mid-pipeline is rejected by
				// handleBuiltin. Kept for symmetry with the single path.
				break
			}
			continue
		}

		var stdin, stdout *os.File
		stdin = s.Stdin
		stdout = s.Stdout
		if i > 0 {
			stdin = pipes.ReadEnd(i - 1)
		}
		if i < n-1 {
			stdout = pipes.WriteEnd(i)
		}

		proc, status := s.launch(cmd, stdin, stdout, s.Stderr, pgid)
		if proc == nil {
			if status == launchFailed {
				// Out of processes or descriptors: abort the whole
				// pipeline and clean up the half-built group rather than
				// leaving orphans behind.
				s.abortGroup(pgid, pids)
				pipes.CloseAll()
				s.reclaimTerminal()
				s.PipelinePgid = 0
				return 1
			}
			// Per-command failure (not found etc.): the stage is dead but
			// its siblings still run, exactly as if a child had exited.
			trailingStatus = status
			if i == n-1 {
				lastPid = -1
			}
			continue
		}

		pids[i] = proc.Pid
		launched++
		if i == n-1 {
			lastPid = proc.Pid
		}

		if pgid == 0 {
			// First successful fork defines the group and takes the
			// terminal.
			pgid = proc.Pid
			s.PipelinePgid = pgid
			joinGroup(proc.Pid, 0)
			s.giveTerminal(pgid)
		} else {
			joinGroup(proc.Pid, pgid)
		}
	}

	// The pipes now live entirely inside the children; the parent's
	// copies would otherwise hold every downstream stdin open forever.
	pipes.CloseAll()

	if launched == 0 {
		s.reclaimTerminal()
		s.PipelinePgid = 0
		return trailingStatus
	}

	if cmds[n-1].Background {
		j := s.AddJob(pgid, Cmdline(cmds), false)
		s.debugf("started background job [%d] pgid=%d", j.ID, pgid)
		s.PipelinePgid = 0
		return 0
	}

	code := s.waitStages(pgid, lastPid, launched, trailingStatus, cmds)
	s.PipelinePgid = 0
	return code
}

// waitStages drains the pipeline's process group and computes the final
// status. A stop takes priority over waiting out the remaining children:
// the whole job is considered suspended.
func (s *Session) waitStages(pgid, lastPid, launched, trailingStatus int, cmds []*Command) int {
	remaining := launched
	lastStatus := trailingStatus
	finalStatus := 0
	finalSeen := false

	for remaining > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-pgid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// ECHILD: everything already reaped.
			break
		}

		if ws.Stopped() {
			s.reclaimTerminal()
			s.LastPgid = pgid
			s.AddJob(pgid, Cmdline(cmds), true)
			s.record(&logger.JobStopped{Pgid: pgid, Signal: int(ws.StopSignal())})
			return exitCode(ws)
		}

		remaining--
		code := exitCode(ws)
		lastStatus = code
		if pid == lastPid {
			finalStatus = code
			finalSeen = true
		}
	}

	s.reclaimTerminal()
	s.LastPgid = pgid

	if !finalSeen && lastPid > 0 {
		// Reap-ordering edge case: the final stage's report was consumed
		// by an errored group wait. One targeted non-blocking attempt.
		var ws unix.WaitStatus
		if pid, err := unix.Wait4(lastPid, &ws, unix.WNOHANG, nil); err == nil && pid == lastPid {
			finalStatus = exitCode(ws)
			finalSeen = true
		}
	}

	if finalSeen {
		return finalStatus
	}
	if lastPid < 0 {
		// The final stage never produced a process (resolution failure or
		// an in-process builtin); its recorded status is the pipeline's,
		// no matter what the drained siblings reported.
		return trailingStatus
	}
	return lastStatus
}

// abortGroup terminates and reaps a partially constructed pipeline after
// a mid-pipeline launch failure, so no children are leaked as orphans or
// zombies.
func (s *Session) abortGroup(pgid int, pids []int) {
	if pgid <= 0 {
		return
	}
	_ = unix.Kill(-pgid, unix.SIGTERM)
	_ = unix.Kill(-pgid, unix.SIGCONT)
	for _, pid := range pids {
		if pid <= 0 {
			continue
		}
		var ws unix.WaitStatus
		for {
			_, err := unix.Wait4(pid, &ws, 0, nil)
			if err != unix.EINTR {
				break
			}
		}
	}
}

// waitGroup waits for a single-command pipeline's group, reporting stops.
func (s *Session) waitGroup(pgid, pid int) (code int, stopped bool) {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(-pgid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// ECHILD without a report; fall back to a direct reap.
			var dws unix.WaitStatus
			if p, derr := unix.Wait4(pid, &dws, unix.WNOHANG, nil); derr == nil && p == pid {
				return exitCode(dws), dws.Stopped()
			}
			return 1, false
		}
		return exitCode(ws), ws.Stopped()
	}
}
