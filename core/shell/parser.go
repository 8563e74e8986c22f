// Package shell parses raw command lines into pipeline stages.
//
// The grammar is deliberately small: words with single/double quoting and
// backslash escapes, '|' between stages, the redirection operators
// <, >, >>, 2>, 2>&1, >&2, << (heredoc), and a trailing '&' for
// background execution. No control flow, globbing, or substitution;
// expansion happens upstream on the raw line.
package shell

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/thrash-sh/thrash/core/proc"
)

// Hard limits carried over from the original implementation; lines this
// shape are operator error, not workload.
const (
	MaxStages = 16
	MaxArgs   = 64
)

// UnterminatedHeredocError reports a heredoc whose delimiter never
// appeared. Interactive callers treat it as "read more lines and parse
// again".
type UnterminatedHeredocError struct {
	Delimiter string
}

func (e *UnterminatedHeredocError) Error() string {
	return fmt.Sprintf("here-document delimited by end-of-file (wanted %q)", e.Delimiter)
}

var (
	// ErrUnterminatedQuote reports an unclosed quote at end of line.
	ErrUnterminatedQuote = errors.New("syntax error: unterminated quoted string")
)

type heredocRef struct {
	cmd   *proc.Command
	delim string
}

type parser struct {
	cmds []*proc.Command
	cur  *proc.Command

	// buf accumulates the pending word; quoted records whether any part
	// of it came from quotes or an escape, which disqualifies it as a
	// file descriptor spec.
	buf    strings.Builder
	quoted bool

	heredocs []heredocRef
}

// Parse turns one logical input into an ordered pipeline of borrowed
// Commands. The first line is the command line proper; any further lines
// are heredoc bodies, consumed in operator order. Heredoc bodies that
// are still missing produce *UnterminatedHeredocError so a REPL can
// collect continuation lines.
func Parse(input string) ([]*proc.Command, error) {
	lines := strings.Split(input, "\n")

	p := &parser{cur: &proc.Command{}}
	if err := p.lexLine(lines[0]); err != nil {
		return nil, err
	}

	body := lines[1:]
	for _, h := range p.heredocs {
		text, rest, ok := takeHeredocBody(body, h.delim)
		if !ok {
			return nil, &UnterminatedHeredocError{Delimiter: h.delim}
		}
		h.cmd.Heredoc = text
		body = rest
	}

	return p.cmds, nil
}

// takeHeredocBody consumes lines up to (not including) the delimiter.
func takeHeredocBody(lines []string, delim string) (body string, rest []string, ok bool) {
	var b strings.Builder
	for i, line := range lines {
		if line == delim {
			return b.String(), lines[i+1:], true
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return "", nil, false
}

func (p *parser) flushWord() error {
	if p.buf.Len() == 0 {
		p.quoted = false
		return nil
	}
	if len(p.cur.Argv) >= MaxArgs {
		return fmt.Errorf("syntax error: too many arguments (max %d)", MaxArgs)
	}
	p.cur.Argv = append(p.cur.Argv, p.buf.String())
	p.buf.Reset()
	p.quoted = false
	return nil
}

func (p *parser) endStage() error {
	if err := p.flushWord(); err != nil {
		return err
	}
	if len(p.cmds) >= MaxStages {
		return fmt.Errorf("syntax error: too many commands (max %d)", MaxStages)
	}
	p.cmds = append(p.cmds, p.cur)
	p.cur = &proc.Command{}
	return nil
}

func (p *parser) lexLine(line string) error {
	r := []rune(line)
	i := 0
	inSingle, inDouble := false, false

	for i < len(r) {
		c := r[i]

		switch {
		// Escapes copy the next character verbatim.
		case c == '\\' && i+1 < len(r):
			p.buf.WriteRune(r[i+1])
			p.quoted = true
			i += 2

		case c == '\'' && !inDouble:
			inSingle = !inSingle
			p.quoted = true
			i++

		case c == '"' && !inSingle:
			inDouble = !inDouble
			p.quoted = true
			i++

		case inSingle || inDouble:
			p.buf.WriteRune(c)
			i++

		case c == '|':
			if err := p.endStage(); err != nil {
				return err
			}
			i++

		case c == '&':
			// Only the job-control '&' is supported, and only at the
			// very end of the line.
			if strings.TrimSpace(string(r[i+1:])) != "" {
				return fmt.Errorf("syntax error near unexpected token '&'")
			}
			if err := p.flushWord(); err != nil {
				return err
			}
			p.cur.Background = true
			i = len(r)

		case c == '>' || c == '<':
			var err error
			i, err = p.lexRedirection(r, i)
			if err != nil {
				return err
			}

		case unicode.IsSpace(c):
			if err := p.flushWord(); err != nil {
				return err
			}
			i++

		default:
			p.buf.WriteRune(c)
			i++
		}
	}

	if inSingle || inDouble {
		return ErrUnterminatedQuote
	}
	return p.endStage()
}

// lexRedirection consumes one redirection operator starting at r[i] and
// returns the index after its operand.
func (p *parser) lexRedirection(r []rune, i int) (int, error) {
	chevron := r[i]

	// A pending unquoted all-digit word directly before the chevron is a
	// file descriptor spec ("2>err"), not an argument. Quoting defeats
	// that reading: `echo "2">x` passes "2" and redirects stdout.
	fd := -1
	if p.buf.Len() > 0 {
		if n, ok := allDigits(p.buf.String()); ok && !p.quoted {
			fd = n
			p.buf.Reset()
		} else if err := p.flushWord(); err != nil {
			return i, err
		}
	}

	isAppend := false
	isHeredoc := false
	if chevron == '>' && i+1 < len(r) && r[i+1] == '>' {
		isAppend = true
		i += 2
	} else if chevron == '<' && i+1 < len(r) && r[i+1] == '<' {
		isHeredoc = true
		i += 2
	} else {
		i++
	}

	// Descriptor duplication: 2>&1 and >&2.
	if chevron == '>' && !isAppend && i < len(r) && r[i] == '&' {
		i++
		word, next, err := readWord(r, i)
		if err != nil {
			return i, err
		}
		target, ok := allDigits(word)
		if !ok {
			return i, fmt.Errorf("syntax error: bad fd duplication target %q", word)
		}
		switch {
		case (fd == -1 || fd == 1) && target == 2:
			p.cur.StdoutToStderr = true
		case fd == 2 && target == 1:
			p.cur.StderrToStdout = true
		default:
			return i, fmt.Errorf("syntax error: unsupported fd duplication %d>&%d", normalFd(fd, 1), target)
		}
		return next, nil
	}

	word, next, err := readWord(r, i)
	if err != nil {
		return i, err
	}
	if word == "" {
		return i, fmt.Errorf("syntax error: missing redirection target after '%c'", chevron)
	}

	switch {
	case isHeredoc:
		p.cur.HasHeredoc = true
		p.heredocs = append(p.heredocs, heredocRef{cmd: p.cur, delim: word})

	case chevron == '<':
		if fd > 0 {
			return i, fmt.Errorf("syntax error: unsupported input descriptor %d", fd)
		}
		p.cur.InputFile = word

	case fd == 2:
		p.cur.ErrorFile = word

	case fd == -1 || fd == 1:
		// Truncate and append are mutually exclusive; last one wins.
		if isAppend {
			p.cur.AppendFile = word
			p.cur.OutputFile = ""
		} else {
			p.cur.OutputFile = word
			p.cur.AppendFile = ""
		}

	default:
		return i, fmt.Errorf("syntax error: unsupported output descriptor %d", fd)
	}

	return next, nil
}

// readWord reads one (possibly quoted) word starting at or after r[i],
// skipping leading spaces.
func readWord(r []rune, i int) (string, int, error) {
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}

	var b strings.Builder
	inSingle, inDouble := false, false
	for i < len(r) {
		c := r[i]
		switch {
		case c == '\\' && i+1 < len(r):
			b.WriteRune(r[i+1])
			i += 2
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			i++
		case c == '"' && !inSingle:
			inDouble = !inDouble
			i++
		case !inSingle && !inDouble && (unicode.IsSpace(c) || c == '|' || c == '<' || c == '>' || c == '&'):
			if b.Len() == 0 {
				return "", i, nil
			}
			return b.String(), i, nil
		default:
			b.WriteRune(c)
			i++
		}
	}

	if inSingle || inDouble {
		return "", i, ErrUnterminatedQuote
	}
	return b.String(), i, nil
}

func allDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func normalFd(fd, dflt int) int {
	if fd == -1 {
		return dflt
	}
	return fd
}
