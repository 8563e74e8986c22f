package proc

import "strings"

// Command is one pipeline stage as produced by the parser.
//
// The orchestrator borrows Commands read-only; it never mutates or retains
// them past the end of RunPipeline.
type Command struct {
	// Argv holds the program name and arguments. Argv[0] is the program.
	Argv []string

	// File redirections. OutputFile (truncate) and AppendFile are mutually
	// exclusive; the parser enforces that.
	InputFile  string
	OutputFile string
	AppendFile string
	ErrorFile  string

	// StdoutToStderr mirrors stdout onto stderr (">&2").
	// StderrToStdout mirrors stderr onto stdout ("2>&1").
	StdoutToStderr bool
	StderrToStdout bool

	// Heredoc is an inline stdin body ("<<"). HasHeredoc distinguishes an
	// empty body from no heredoc at all.
	Heredoc    string
	HasHeredoc bool

	// Dir overrides the working directory of this stage only.
	Dir string

	// Background marks the pipeline to run without the terminal and
	// without being waited for.
	Background bool
}

// Empty reports whether the command has no program to run.
func (c *Command) Empty() bool {
	return c == nil || len(c.Argv) == 0 || c.Argv[0] == ""
}

// Name returns the program name, or "" for an empty command.
func (c *Command) Name() string {
	if c.Empty() {
		return ""
	}
	return c.Argv[0]
}

// String renders the command roughly as the user typed it, for job
// listings and logs.
func (c *Command) String() string {
	if c == nil {
		return ""
	}
	return strings.Join(c.Argv, " ")
}

// Cmdline renders a whole pipeline for job listings.
func Cmdline(cmds []*Command) string {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if !c.Empty() {
			parts = append(parts, c.String())
		}
	}
	return strings.Join(parts, " | ")
}
