// Package history implements persistent command history with the
// filtering behavior interactive shells expect: duplicate and
// leading-space suppression, trailing-space trimming, and a bounded
// on-disk cap. Storage goes through an afero filesystem so tests run
// against memory.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Flags select which lines are kept.
type Flags int

const (
	// IgnoreEmpty drops empty and whitespace-only lines.
	IgnoreEmpty Flags = 1 << iota
	// IgnoreSpace drops lines starting with a space.
	IgnoreSpace
	// IgnoreDups drops consecutive duplicates.
	IgnoreDups
	// TrimTrailing removes trailing whitespace before storing.
	TrimTrailing
)

// Entry is one remembered command line. Status is the exit code the
// command eventually produced, or -1 while unknown.
type Entry struct {
	ID     uint64
	When   time.Time
	Status int
	Line   string
}

// History is a capped, persistable list of entries.
type History struct {
	fs      afero.Fs
	path    string
	max     int
	flags   Flags
	entries []Entry
	nextID  uint64
}

const fileHeader = "#thrash-history v1"

// New creates a history bound to a file path on fs, keeping at most max
// entries in memory and on disk.
func New(fs afero.Fs, path string, max int, flags Flags) *History {
	if max <= 0 {
		max = 1000
	}
	return &History{fs: fs, path: path, max: max, flags: flags, nextID: 1}
}

// DefaultPath resolves the history location: $XDG_STATE_HOME/thrash/history
// when XDG_STATE_HOME is set, otherwise ~/.thrash_history.
func DefaultPath() (string, error) {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "thrash", "history"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".thrash_history"), nil
}

// Add appends a line, subject to the behavior flags. The returned id is
// zero when the line was filtered out.
func (h *History) Add(line string) uint64 {
	if h.flags&TrimTrailing != 0 {
		line = strings.TrimRight(line, " \t")
	}
	if h.flags&IgnoreEmpty != 0 && strings.TrimSpace(line) == "" {
		return 0
	}
	if h.flags&IgnoreSpace != 0 && strings.HasPrefix(line, " ") {
		return 0
	}
	if h.flags&IgnoreDups != 0 && len(h.entries) > 0 &&
		h.entries[len(h.entries)-1].Line == line {
		return 0
	}

	e := Entry{ID: h.nextID, When: time.Now(), Status: -1, Line: line}
	h.nextID++
	h.entries = append(h.entries, e)
	h.Stifle(h.max)
	return e.ID
}

// SetStatusLast annotates the most recent entry with an exit status.
func (h *History) SetStatusLast(status int) {
	if len(h.entries) == 0 {
		return
	}
	h.entries[len(h.entries)-1].Status = status
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entry returns entry i, oldest first.
func (h *History) Entry(i int) Entry {
	return h.entries[i]
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear discards every entry.
func (h *History) Clear() {
	h.entries = nil
}

// Stifle trims the history down to max entries, dropping the oldest.
func (h *History) Stifle(max int) {
	if max > 0 && len(h.entries) > max {
		h.entries = append(h.entries[:0:0], h.entries[len(h.entries)-max:]...)
	}
}

// Load reads the history file. A missing file is not an error; an
// unrecognized line is kept as a bare command with unknown status so old
// plain-text files import cleanly.
func (h *History) Load() error {
	f, err := h.fs.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e := Entry{ID: h.nextID, Status: -1}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) == 3 {
			if ts, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
				e.When = time.Unix(ts, 0)
				if st, err := strconv.Atoi(parts[1]); err == nil {
					e.Status = st
				}
				e.Line = parts[2]
			} else {
				e.Line = line
			}
		} else {
			e.Line = line
		}

		h.nextID++
		h.entries = append(h.entries, e)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	h.Stifle(h.max)
	return nil
}

// Save writes the history atomically: into a sibling temp file first,
// renamed over the target on success.
func (h *History) Save() error {
	dir := filepath.Dir(h.path)
	if dir != "." && dir != "/" {
		if err := h.fs.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	tmp := h.path + ".tmp"
	f, err := h.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, fileHeader)
	for _, e := range h.entries {
		fmt.Fprintf(w, "%d\t%d\t%s\n", e.When.Unix(), e.Status, e.Line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return h.fs.Rename(tmp, h.path)
}
