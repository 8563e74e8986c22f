package proc

import (
	"errors"
	"os"

	"github.com/thrash-sh/thrash/core/vars"
)

// builtinAction is the outcome of offering a pipeline stage to the
// builtin handler.
type builtinAction int

const (
	// notBuiltin: the stage is an external command; fork it.
	notBuiltin builtinAction = iota
	// builtinHandled: the stage ran (or was rejected) in-process; skip
	// the fork and move to the next stage.
	builtinHandled
	// builtinExit: the exit builtin fired as the sole command; the
	// pipeline is over and the shell is shutting down.
	builtinExit
)

// handleBuiltin deals with the two builtins that belong to the execution
// core because they must observe pipeline position: cd mutates the
// shell's own working directory (meaningless in a child), and exit is
// only legal as the sole command of a pipeline.
func (s *Session) handleBuiltin(cmd *Command, numCmds int) (builtinAction, int) {
	switch cmd.Name() {
	case "cd":
		status := s.chdir(cmd.Argv)
		s.reclaimTerminal()
		s.PipelinePgid = 0
		return builtinHandled, status
	case "exit":
		if numCmds == 1 {
			s.Running = false
			return builtinExit, 0
		}
		s.errorf("builtin 'exit' cannot be used in a pipeline")
		return builtinHandled, 1
	}
	return notBuiltin, 0
}

// chdir implements cd: with no argument it goes to $HOME. PWD and OLDPWD
// are maintained in the variable table as exported variables.
func (s *Session) chdir(argv []string) int {
	var dir string
	switch {
	case len(argv) > 2:
		s.errorf("cd: too many arguments")
		return 1
	case len(argv) == 2:
		dir = argv[1]
	default:
		dir = s.Vars.Get("HOME")
		if dir == "" {
			s.errorf("cd: HOME not set")
			return 1
		}
	}

	oldpwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		s.errorf("cd: %s: %v", dir, err)
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = dir
	}
	s.Vars.Set("OLDPWD", oldpwd, vars.FlagExport)
	s.Vars.Set("PWD", wd, vars.FlagExport)
	return 0
}
