// Package vars implements the shell variable table: a name to value map
// with per-variable export and readonly flags, $-expansion, and
// construction of the environment block handed to launched programs.
package vars

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Flags annotate a variable's behavior.
type Flags uint32

const (
	// FlagExport marks a variable for inclusion in child environments.
	FlagExport Flags = 1 << iota
	// FlagReadonly refuses later Set and Unset calls.
	FlagReadonly
)

type entry struct {
	value string
	flags Flags
}

// Table is the variable store. Safe for concurrent readers; the shell
// itself is single-threaded but the logger and tests read concurrently.
type Table struct {
	mu   sync.RWMutex
	vars map[string]*entry
}

// NewTable creates an empty variable table.
func NewTable() *Table {
	return &Table{vars: make(map[string]*entry)}
}

// FromEnviron seeds a table from NAME=VALUE pairs, marking every entry
// exported, the way a login shell inherits its environment.
func FromEnviron(environ []string) *Table {
	t := NewTable()
	for _, kv := range environ {
		name, value, _ := strings.Cut(kv, "=")
		if name == "" {
			continue
		}
		t.vars[name] = &entry{value: value, flags: FlagExport}
	}
	return t
}

// Get returns the value of name, or "" when unset.
func (t *Table) Get(name string) string {
	v, _ := t.Lookup(name)
	return v
}

// Lookup returns the value of name and whether it is set.
func (t *Table) Lookup(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.vars[name]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Set creates or updates a variable, merging flags into any existing
// entry so export status survives reassignment. Returns false if the
// variable is readonly.
func (t *Table) Set(name, value string, flags Flags) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.vars[name]; ok {
		if e.flags&FlagReadonly != 0 {
			return false
		}
		e.value = value
		e.flags |= flags
		return true
	}
	t.vars[name] = &entry{value: value, flags: flags}
	return true
}

// Unset removes a variable. Returns false if it does not exist or is
// readonly.
func (t *Table) Unset(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.vars[name]
	if !ok || e.flags&FlagReadonly != 0 {
		return false
	}
	delete(t.vars, name)
	return true
}

// Export marks name for export, creating it empty if missing, matching
// what `export FOO` does in bash.
func (t *Table) Export(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.vars[name]; ok {
		e.flags |= FlagExport
		return
	}
	t.vars[name] = &entry{flags: FlagExport}
}

// Unexport clears the export flag; a no-op for missing variables.
func (t *Table) Unexport(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.vars[name]; ok {
		e.flags &^= FlagExport
	}
}

// Exported reports whether name is set and exported.
func (t *Table) Exported(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.vars[name]
	return ok && e.flags&FlagExport != 0
}

// Environ builds the NAME=VALUE block for a child process from the
// exported variables only. Sorted for deterministic output.
func (t *Table) Environ() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for name, e := range t.vars {
		if e.flags&FlagExport != 0 {
			out = append(out, fmt.Sprintf("%s=%s", name, e.value))
		}
	}
	sort.Strings(out)
	return out
}

var expandRegex = regexp.MustCompile(`\$(\$|\?|\{\w+\}|\w+)`)

// Expand substitutes $NAME, ${NAME}, $? and $$ occurrences in s.
// Unset variables expand to the empty string.
func (t *Table) Expand(s string, lastStatus int) string {
	return expandRegex.ReplaceAllStringFunc(s, func(m string) string {
		body := m[1:]
		switch body {
		case "$":
			return strconv.Itoa(os.Getpid())
		case "?":
			return strconv.Itoa(lastStatus)
		}
		name := strings.Trim(body, "{}")
		return t.Get(name)
	})
}

// IsAssignment splits a NAME=VALUE word, reporting whether it is a valid
// shell assignment (NAME must start with a letter or underscore and
// contain only word characters).
func IsAssignment(s string) (name, value string, ok bool) {
	name, value, found := strings.Cut(s, "=")
	if !found || name == "" {
		return "", "", false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return "", "", false
			}
		default:
			return "", "", false
		}
	}
	return name, value, true
}
