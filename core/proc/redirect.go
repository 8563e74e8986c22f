package proc

import (
	"fmt"
	"os"
)

// RedirType tags a redirection directive.
type RedirType int

const (
	RedirIn      RedirType = iota // "< file" onto the target fd
	RedirOut                      // "> file", truncating
	RedirAppend                   // ">> file"
	RedirErr                      // "2> file"
	RedirDupErr                   // "2>&1": stderr follows stdout
	RedirDupOut                   // ">&2": stdout follows stderr
	RedirHeredoc                  // "<< DELIM" inline body onto stdin
	RedirCwd                      // working-directory override
)

// Redirection is a single directive derived from a Command immediately
// before launch; it is never persisted.
type Redirection struct {
	Type     RedirType
	TargetFD int    // fd being replaced
	SourceFD int    // for dup-style directives, the fd copied from
	Filename string // for file-based directives and the cwd override
	Heredoc  string // inline body for RedirHeredoc
}

// ExtractRedirections derives the ordered directive list from a Command.
// The order is a contract: input, output, append, error, stderr-dup,
// stdout-dup, heredoc, cwd override. Directives are applied in exactly
// this order, so a heredoc overrides an input file and the dups see any
// file redirections that preceded them.
func ExtractRedirections(cmd *Command) []Redirection {
	var list []Redirection

	if cmd.InputFile != "" {
		list = append(list, Redirection{Type: RedirIn, TargetFD: 0, SourceFD: -1, Filename: cmd.InputFile})
	}
	if cmd.OutputFile != "" {
		list = append(list, Redirection{Type: RedirOut, TargetFD: 1, SourceFD: -1, Filename: cmd.OutputFile})
	}
	if cmd.AppendFile != "" {
		list = append(list, Redirection{Type: RedirAppend, TargetFD: 1, SourceFD: -1, Filename: cmd.AppendFile})
	}
	if cmd.ErrorFile != "" {
		list = append(list, Redirection{Type: RedirErr, TargetFD: 2, SourceFD: -1, Filename: cmd.ErrorFile})
	}
	if cmd.StderrToStdout {
		list = append(list, Redirection{Type: RedirDupErr, TargetFD: 2, SourceFD: 1})
	}
	if cmd.StdoutToStderr {
		list = append(list, Redirection{Type: RedirDupOut, TargetFD: 1, SourceFD: 2})
	}
	if cmd.HasHeredoc {
		list = append(list, Redirection{Type: RedirHeredoc, TargetFD: 0, SourceFD: -1, Heredoc: cmd.Heredoc})
	}
	if cmd.Dir != "" {
		list = append(list, Redirection{Type: RedirCwd, SourceFD: -1, Filename: cmd.Dir})
	}

	return list
}

// childIO is the file-descriptor table handed to one child: the three
// stdio slots, an optional working-directory override, and the files the
// parent must close once the child has been started.
type childIO struct {
	files   [3]*os.File
	dir     string
	closers []*os.File
}

// Close releases the parent's copies of every file opened for the child.
// Safe to call exactly once on every path, success or failure.
func (c *childIO) Close() {
	for _, f := range c.closers {
		f.Close()
	}
	c.closers = nil
}

// applyRedirections materializes the directive list over the inherited
// stdio triple. It is the moral equivalent of running dup2 in the child
// after fork: each directive rewrites one slot of the table the child
// will be started with. On error the returned error names the directive
// that failed and every file opened so far has been closed.
func applyRedirections(redirs []Redirection, stdin, stdout, stderr *os.File) (*childIO, error) {
	io := &childIO{files: [3]*os.File{stdin, stdout, stderr}}

	fail := func(err error) (*childIO, error) {
		io.Close()
		return nil, err
	}

	for _, r := range redirs {
		switch r.Type {
		case RedirIn:
			f, err := os.Open(r.Filename)
			if err != nil {
				return fail(err)
			}
			io.files[r.TargetFD] = f
			io.closers = append(io.closers, f)

		case RedirOut, RedirErr:
			f, err := os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
			if err != nil {
				return fail(err)
			}
			io.files[r.TargetFD] = f
			io.closers = append(io.closers, f)

		case RedirAppend:
			f, err := os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)
			if err != nil {
				return fail(err)
			}
			io.files[r.TargetFD] = f
			io.closers = append(io.closers, f)

		case RedirDupErr, RedirDupOut:
			io.files[r.TargetFD] = io.files[r.SourceFD]

		case RedirHeredoc:
			pr, pw, err := os.Pipe()
			if err != nil {
				return fail(err)
			}
			// The body is fed from the parent; the child only ever sees
			// the read end. Writing happens on a separate goroutine so a
			// body larger than the pipe buffer cannot deadlock the fork
			// loop.
			go func(body string, w *os.File) {
				_, _ = w.WriteString(body)
				w.Close()
			}(r.Heredoc, pw)
			io.files[r.TargetFD] = pr
			io.closers = append(io.closers, pr)

		case RedirCwd:
			io.dir = r.Filename

		default:
			return fail(fmt.Errorf("unknown redirection type %d", r.Type))
		}
	}

	return io, nil
}
