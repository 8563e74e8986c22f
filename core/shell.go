// Package core ties the shell together: the readline REPL, prompt
// rendering, shell-level builtins, and the wiring between the parser,
// the variable table, persistent history, and the execution core.
package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/thrash-sh/thrash/core/config"
	"github.com/thrash-sh/thrash/core/history"
	"github.com/thrash-sh/thrash/core/logger"
	"github.com/thrash-sh/thrash/core/proc"
	"github.com/thrash-sh/thrash/core/shell"
	"github.com/thrash-sh/thrash/core/vars"
)

const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvPath   = "PATH"
	EnvPrompt = "PS1"
	EnvShell  = "SHELL"
	EnvUser   = "USER"

	// ProgName prefixes every diagnostic.
	ProgName = "thrash"
)

// Shell is one interactive shell instance.
type Shell struct {
	Config   *config.Configuration
	Session  *proc.Session
	Vars     *vars.Table
	History  *history.History
	Readline *readline.Instance

	restoreSignals func()
	toClose        []io.Closer
}

// jobControlTTY picks the terminal descriptor for job control: stdin
// when the shell is interactive and stdin is a terminal, otherwise -1.
// One-shot mode (-c) is never interactive, so it performs no terminal
// handoff even when launched from one.
func jobControlTTY(interactive bool) int {
	if !interactive {
		return -1
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return int(os.Stdin.Fd())
	}
	return -1
}

// NewShell builds a shell around the current process: variables seeded
// from the environment, job control bound to stdin when running
// interactively on a terminal, and history at its default path.
func NewShell(cfg *config.Configuration, lg *logger.SessionLogger, interactive bool) (*Shell, error) {
	table := vars.FromEnviron(os.Environ())

	tty := jobControlTTY(interactive)

	session := proc.NewSession(ProgName, tty, table)
	session.Log = lg

	histPath, err := history.DefaultPath()
	if err != nil {
		return nil, err
	}
	flags := history.IgnoreEmpty | history.TrimTrailing
	if cfg.History.IgnoreDups {
		flags |= history.IgnoreDups
	}
	if cfg.History.IgnoreSpace {
		flags |= history.IgnoreSpace
	}
	hist := history.New(afero.NewOsFs(), histPath, cfg.History.Size, flags)
	if err := hist.Load(); err != nil {
		log.Printf("no existing history loaded: %v", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "$ ",
	})
	if err != nil {
		return nil, err
	}

	s := &Shell{
		Config:   cfg,
		Session:  session,
		Vars:     table,
		History:  hist,
		Readline: rl,
	}
	s.toClose = append(s.toClose, rl)
	s.init()

	// Mirror persistent history into readline so Up-arrow and Ctrl-R
	// see old entries.
	for _, e := range hist.Entries() {
		_ = rl.SaveHistory(e.Line)
	}

	if lg != nil {
		_ = lg.Record(&logger.ShellStart{Pid: os.Getpid(), Interactive: tty >= 0})
	}
	return s, nil
}

// init sets up the environment similar to login + source ~/.bashrc.
func (s *Shell) init() {
	if s.Vars.Get(EnvPath) == "" {
		s.Vars.Set(EnvPath, s.Config.DefaultPath, vars.FlagExport)
	}
	if s.Vars.Get(EnvPrompt) == "" {
		s.Vars.Set(EnvPrompt, s.Config.Prompt, 0)
	}
	s.Vars.Set(EnvShell, ProgName, vars.FlagExport)
	if wd, err := os.Getwd(); err == nil {
		s.Vars.Set(EnvPWD, wd, vars.FlagExport)
	}
}

// Prompt renders PS1: \u user, \h host, \w cwd (with ~ contraction),
// \$ the privilege marker.
func (s *Shell) Prompt() string {
	prompt := s.Vars.Get(EnvPrompt)
	if prompt == "" {
		prompt = s.Config.Prompt
	}

	user := s.Vars.Get(EnvUser)
	host, _ := os.Hostname()

	pwd, _ := os.Getwd()
	if home := s.Vars.Get(EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	marker := "$"
	if os.Getuid() == 0 {
		marker = "#"
	}

	if s.Config.Color {
		user = color.New(color.FgGreen).Sprint(user)
		host = color.New(color.FgGreen).Sprint(host)
		pwd = color.New(color.FgBlue).Sprint(pwd)
	}

	prompt = strings.ReplaceAll(prompt, `\u`, user)
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	prompt = strings.ReplaceAll(prompt, `\$`, marker)
	return prompt
}

// Run is the interactive loop. It returns the status of the last
// pipeline when the shell stops via exit or EOF.
func (s *Shell) Run() int {
	s.restoreSignals = proc.SetupShellSignals()
	defer s.Close()

	for _, line := range s.Config.Startup {
		s.RunLine(line)
	}

	for s.Session.Running {
		s.Session.ReapBackground()
		s.Readline.SetPrompt(s.Prompt())

		line, err := s.Readline.Readline()
		switch {
		case err == io.EOF:
			s.Session.Running = false
			continue

		case err == readline.ErrInterrupt:
			// The line is abandoned, not the shell.
			continue

		case err != nil:
			log.Printf("readline: %v", err)
			s.Session.Running = false
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if s.History.Add(line) != 0 {
			_ = s.Readline.SaveHistory(line)
		}

		status := s.RunLine(line)
		s.History.SetStatusLast(status)
	}

	return s.Session.LastStatus
}

// RunLine expands, parses, and executes one input line and returns its
// shell status.
func (s *Shell) RunLine(line string) int {
	expanded := s.Vars.Expand(line, s.Session.LastStatus)

	// A lone NAME=VALUE word is an assignment, not a command.
	if fields := strings.Fields(expanded); len(fields) == 1 {
		if name, value, ok := vars.IsAssignment(fields[0]); ok {
			if !s.Vars.Set(name, value, 0) {
				fmt.Fprintf(s.Session.Stderr, "%s: %s: readonly variable\n", ProgName, name)
				return 1
			}
			return 0
		}
	}

	cmds, err := s.parseWithContinuation(expanded)
	if err != nil {
		fmt.Fprintf(s.Session.Stderr, "%s: %v\n", ProgName, err)
		return 2
	}

	if len(cmds) == 1 && !cmds[0].Empty() {
		if handled, status := s.runBuiltin(cmds[0]); handled {
			s.Session.LastStatus = status
			return status
		}
	}

	return s.Session.RunPipeline(cmds)
}

// parseWithContinuation parses the line, reading heredoc continuation
// lines from the terminal when the parser asks for them.
func (s *Shell) parseWithContinuation(input string) ([]*proc.Command, error) {
	for {
		cmds, err := shell.Parse(input)
		var heredoc *shell.UnterminatedHeredocError
		if err == nil {
			return cmds, nil
		}
		if !errors.As(err, &heredoc) || s.Session.TTY < 0 {
			return nil, err
		}

		s.Readline.SetPrompt("> ")
		more, rerr := s.Readline.Readline()
		if rerr != nil {
			// EOF inside a heredoc: bash warns and takes what it has;
			// we close the body with the delimiter.
			input = input + "\n" + heredoc.Delimiter
			continue
		}
		input = input + "\n" + more
	}
}

// Close flushes history and releases the terminal resources.
func (s *Shell) Close() error {
	if s.restoreSignals != nil {
		s.restoreSignals()
		s.restoreSignals = nil
	}
	if err := s.History.Save(); err != nil {
		log.Printf("failed to save history: %v", err)
	}
	if s.Session.Log != nil {
		_ = s.Session.Log.Record(&logger.ShellExit{Status: s.Session.LastStatus})
	}

	var lastErr error
	for _, c := range s.toClose {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	s.toClose = nil
	return lastErr
}
