package proc

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/thrash-sh/thrash/core/logger"
)

// launchFailed is the status sentinel for a system-resource failure
// (fork/pipe exhaustion) as opposed to a per-command failure. The
// orchestrator aborts the whole pipeline when it sees it.
const launchFailed = -1

// launch resolves and starts one external command as a member of process
// group pgid (zero: leader of a new group).
//
// Exactly one of the two results is meaningful: a non-nil process on
// success, otherwise a final shell status (126, 127, 1, or launchFailed)
// whose one-line diagnostic has already been written. There is no path on
// which a caller may keep running the stage; this is the Go rendering of
// a child-side executor that either execs or exits.
func (s *Session) launch(cmd *Command, stdin, stdout, stderr *os.File, pgid int) (*os.Process, int) {
	name := cmd.Name()

	// Resolve argv[0]: a name containing a slash is taken literally,
	// anything else is searched for on PATH.
	var path string
	if hasSlash(name) {
		path = name
	} else {
		var res Resolution
		path, res = SearchPath(name, s.Vars.Get("PATH"))
		switch res {
		case NotFound:
			s.errorf("%s: command not found", name)
			s.record(&logger.ResolveFailure{Command: name, Reason: "not found"})
			return nil, StatusNotFound
		case FoundDir:
			s.errorf("%s: Is a directory", name)
			s.record(&logger.ResolveFailure{Command: name, Reason: "directory"})
			return nil, StatusCannotExec
		case FoundNotExec:
			s.errorf("%s: Permission denied", name)
			s.record(&logger.ResolveFailure{Command: name, Reason: "not executable"})
			return nil, StatusCannotExec
		}
	}

	// Re-validate the resolved path. Looks redundant after SearchPath but
	// is not: it defends against the file changing underneath us and
	// against literal paths that never went through the resolver.
	switch classifyPath(path) {
	case FoundDir:
		s.errorf("%s: Is a directory", name)
		return nil, StatusCannotExec
	case FoundNotExec:
		s.errorf("%s: Permission denied", name)
		return nil, StatusCannotExec
	case NotFound:
		s.errorf("%s: No such file or directory", name)
		return nil, StatusNotFound
	}

	// Apply redirections in their declared order to build the child's fd
	// table. A directive failure kills this one stage with status 1
	// before any process exists, mirroring a child exiting pre-exec.
	io, err := applyRedirections(ExtractRedirections(cmd), stdin, stdout, stderr)
	if err != nil {
		s.errorf("%v", err)
		return nil, 1
	}

	// The child sees exactly the shell's exported variables, not the
	// shell's inherited process environment.
	attr := &os.ProcAttr{
		Dir:   io.dir,
		Env:   s.Vars.Environ(),
		Files: []*os.File{io.files[0], io.files[1], io.files[2]},
		Sys: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		},
	}

	proc, err := os.StartProcess(path, cmd.Argv, attr)
	io.Close()
	if err != nil {
		return nil, s.classifyStartError(name, err)
	}
	return proc, 0
}

// classifyStartError maps a failed process start onto shell status codes.
// Go surfaces the child's execve errno through the start error, so the
// classification the C tradition does after a returning execve happens
// here instead.
func (s *Session) classifyStartError(name string, err error) int {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		s.errorf("%s: %v", name, err)
		return StatusCannotExec
	}

	switch errno {
	case unix.EACCES:
		s.errorf("%s: Permission denied", name)
		return StatusCannotExec
	case unix.ENOEXEC:
		s.errorf("%s: Exec format error", name)
		return StatusCannotExec
	case unix.ENOENT:
		// The file vanished between resolution and exec; report the
		// original command name, not the resolved candidate.
		s.errorf("%s: No such file or directory", name)
		return StatusNotFound
	case unix.ENOTDIR:
		s.errorf("%s: Not a directory", name)
		return StatusCannotExec
	case unix.EAGAIN, unix.ENOMEM, unix.EMFILE, unix.ENFILE:
		// Resource exhaustion is fatal to the pipeline, not the command.
		s.errorf("%s: %v", name, err)
		return launchFailed
	default:
		s.errorf("%s: %v", name, errno)
		return StatusCannotExec
	}
}
