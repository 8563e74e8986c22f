package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"

	"github.com/thrash-sh/thrash/core/proc"
	"github.com/thrash-sh/thrash/core/vars"
)

// runBuiltin executes shell-level builtins: the ones that read or mutate
// shell state but have no pipeline-position semantics. They only fire as
// the sole command of a line; inside pipelines their names resolve like
// any external program. cd and exit live in the execution core instead.
func (s *Shell) runBuiltin(cmd *proc.Command) (handled bool, status int) {
	switch cmd.Name() {
	case "export":
		return true, s.builtinExport(cmd.Argv)
	case "unset":
		return true, s.builtinUnset(cmd.Argv)
	case "pwd":
		return true, s.builtinPwd()
	case "history":
		return true, s.builtinHistory(cmd.Argv)
	case "jobs":
		return true, s.builtinJobs(cmd.Argv)
	case "fg":
		return true, s.builtinFg(cmd.Argv)
	}
	return false, 0
}

// builtinExport marks variables for export; "export NAME=VALUE" assigns
// and exports in one step, "export -n NAME" removes the export flag.
func (s *Shell) builtinExport(argv []string) int {
	opts := getopt.New()
	unexport := opts.Bool('n', "remove the export property")
	if err := opts.Getopt(argv, nil); err != nil {
		fmt.Fprintf(s.Session.Stderr, "%s: export: %v\n", ProgName, err)
		return 2
	}

	for _, arg := range opts.Args() {
		if name, value, ok := vars.IsAssignment(arg); ok {
			if !s.Vars.Set(name, value, vars.FlagExport) {
				fmt.Fprintf(s.Session.Stderr, "%s: export: %s: readonly variable\n", ProgName, name)
				return 1
			}
			continue
		}
		if *unexport {
			s.Vars.Unexport(arg)
		} else {
			s.Vars.Export(arg)
		}
	}

	if len(opts.Args()) == 0 {
		for _, kv := range s.Vars.Environ() {
			fmt.Fprintf(s.Session.Stdout, "export %s\n", kv)
		}
	}
	return 0
}

func (s *Shell) builtinUnset(argv []string) int {
	status := 0
	for _, name := range argv[1:] {
		if !s.Vars.Unset(name) {
			status = 1
		}
	}
	return status
}

func (s *Shell) builtinPwd() int {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(s.Session.Stderr, "%s: pwd: %v\n", ProgName, err)
		return 1
	}
	fmt.Fprintln(s.Session.Stdout, wd)
	return 0
}

// builtinHistory prints the numbered history list; -c clears it and
// -n N limits output to the last N entries.
func (s *Shell) builtinHistory(argv []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history list")
	last := opts.Int('n', 0, "show only the last N entries", "N")
	if err := opts.Getopt(argv, nil); err != nil {
		fmt.Fprintf(s.Session.Stderr, "%s: history: %v\n", ProgName, err)
		return 2
	}

	if *clear {
		s.History.Clear()
		return 0
	}

	entries := s.History.Entries()
	start := 0
	if *last > 0 && *last < len(entries) {
		start = len(entries) - *last
	}
	for i := start; i < len(entries); i++ {
		fmt.Fprintf(s.Session.Stdout, "%5d  %s\n", i+1, entries[i].Line)
	}
	return 0
}

func (s *Shell) builtinJobs(argv []string) int {
	for _, j := range s.Session.Jobs() {
		state := "Running"
		if j.Stopped {
			state = "Stopped"
		}
		fmt.Fprintf(s.Session.Stdout, "[%d]  %s\t\t%s\n", j.ID, state, j.Cmdline)
	}
	return 0
}

// builtinFg resumes a stopped or background job in the foreground.
// With no argument the most recent job is used; "%N" or "N" selects one.
func (s *Shell) builtinFg(argv []string) int {
	id := 0
	if len(argv) > 1 {
		spec := strings.TrimPrefix(argv[1], "%")
		n, err := strconv.Atoi(spec)
		if err != nil {
			fmt.Fprintf(s.Session.Stderr, "%s: fg: %s: no such job\n", ProgName, argv[1])
			return 1
		}
		id = n
	}

	job := s.Session.FindJob(id)
	if job == nil {
		fmt.Fprintf(s.Session.Stderr, "%s: fg: no current job\n", ProgName)
		return 1
	}

	fmt.Fprintln(s.Session.Stdout, job.Cmdline)
	return s.Session.ResumeJob(job)
}
