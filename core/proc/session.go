package proc

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/thrash-sh/thrash/core/logger"
	"github.com/thrash-sh/thrash/core/vars"
)

// Job is one pipeline the shell is tracking: either stopped by a
// terminal signal or running in the background.
type Job struct {
	ID      int
	Pgid    int
	Cmdline string
	Stopped bool
}

// Session is the shell execution context threaded through every
// operation of the execution core. It replaces what a C shell would keep
// in globals: the diagnostic program name, terminal state, group
// bookkeeping, and the job table. One Session exists per shell process,
// created at startup and torn down at exit.
type Session struct {
	// Name prefixes user-facing diagnostics ("thrash: ls: ...").
	Name string

	// TTY is the controlling terminal descriptor, or -1 when the shell
	// is not interactive. ShellPgid is the shell's own process group,
	// restored as foreground after every pipeline.
	TTY       int
	ShellPgid int

	// PipelinePgid is the group of the currently running pipeline, zero
	// between pipelines. LastPgid remembers the most recently finished or
	// stopped pipeline for job resumption.
	PipelinePgid int
	LastPgid     int

	// LastStatus is the exit code of the last completed pipeline.
	// Running is cleared by the exit builtin to stop the shell loop.
	LastStatus int
	Running    bool

	// Vars is the shell variable table; its exported entries become the
	// environment of every launched child.
	Vars *vars.Table

	// Log receives structured execution events; nil disables logging.
	Log *logger.SessionLogger

	// Stdio inherited by pipeline stages that have no redirection.
	Stdin, Stdout, Stderr *os.File

	jobs    []*Job
	nextJob int
}

// NewSession creates the execution context for one shell process. tty is
// the controlling terminal fd or -1 for non-interactive use.
func NewSession(name string, tty int, table *vars.Table) *Session {
	return &Session{
		Name:      name,
		TTY:       tty,
		ShellPgid: unix.Getpgrp(),
		Vars:      table,
		Running:   true,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		nextJob:   1,
	}
}

// errorf writes a one-line user-facing diagnostic prefixed with the
// shell's name.
func (s *Session) errorf(format string, args ...interface{}) {
	w := s.Stderr
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "%s: %s\n", s.Name, fmt.Sprintf(format, args...))
}

func (s *Session) debugf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func (s *Session) record(ev logger.Event) {
	if s.Log != nil {
		_ = s.Log.Record(ev)
	}
}

// AddJob registers a stopped or background pipeline in the job table and
// returns its entry.
func (s *Session) AddJob(pgid int, cmdline string, stopped bool) *Job {
	j := &Job{ID: s.nextJob, Pgid: pgid, Cmdline: cmdline, Stopped: stopped}
	s.nextJob++
	s.jobs = append(s.jobs, j)
	return j
}

// Jobs returns the live job table.
func (s *Session) Jobs() []*Job {
	return s.jobs
}

// FindJob looks a job up by id; id 0 means the most recent job.
func (s *Session) FindJob(id int) *Job {
	if len(s.jobs) == 0 {
		return nil
	}
	if id == 0 {
		return s.jobs[len(s.jobs)-1]
	}
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (s *Session) removeJob(pgid int) {
	out := s.jobs[:0]
	for _, j := range s.jobs {
		if j.Pgid != pgid {
			out = append(out, j)
		}
	}
	s.jobs = out
}

// ReapBackground collects finished background jobs without blocking.
// Called by the shell loop between pipelines so background exits do not
// accumulate as zombies.
func (s *Session) ReapBackground() {
	// Iterate a snapshot: removeJob compacts s.jobs in place, and several
	// jobs can die between two passes.
	for _, j := range append([]*Job(nil), s.jobs...) {
		if j.Stopped {
			continue
		}
		for {
			var ws unix.WaitStatus
			pid, err := unix.Wait4(-j.Pgid, &ws, unix.WNOHANG, nil)
			if err == unix.EINTR {
				continue
			}
			if err != nil || pid == 0 {
				break
			}
			if ws.Stopped() {
				j.Stopped = true
				break
			}
		}
		if err := unix.Kill(-j.Pgid, 0); err == unix.ESRCH {
			fmt.Fprintf(s.Stdout, "[%d]+  Done\t%s\n", j.ID, j.Cmdline)
			s.removeJob(j.Pgid)
		}
	}
}

// ResumeJob continues a stopped job in the foreground: hand it the
// terminal, SIGCONT the whole group, and wait for it the same way a
// fresh pipeline is waited for. Returns the shell exit code of the job.
func (s *Session) ResumeJob(j *Job) int {
	if j == nil {
		s.errorf("fg: no such job")
		return 1
	}

	s.PipelinePgid = j.Pgid
	s.giveTerminal(j.Pgid)
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		s.errorf("fg: %v", err)
		s.reclaimTerminal()
		s.PipelinePgid = 0
		return 1
	}
	j.Stopped = false

	status := 0
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(-j.Pgid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil { // ECHILD: every member has been reaped
			s.removeJob(j.Pgid)
			break
		}
		if ws.Stopped() {
			j.Stopped = true
			s.LastPgid = j.Pgid
			status = exitCode(ws)
			s.record(&logger.JobStopped{Pgid: j.Pgid, Signal: int(ws.StopSignal())})
			break
		}
		status = exitCode(ws)
	}

	s.reclaimTerminal()
	s.LastPgid = j.Pgid
	s.PipelinePgid = 0
	return status
}
