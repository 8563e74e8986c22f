package proc

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Resolution classifies the outcome of a command-name lookup. The
// distinction matters for exit codes: NotFound maps to 127, the two
// found-but-unrunnable cases map to 126.
type Resolution int

const (
	// FoundExec means an executable regular file was found.
	FoundExec Resolution = iota
	// NotFound means no candidate exists anywhere on the search path.
	NotFound
	// FoundNotExec means a regular file exists but is not executable.
	FoundNotExec
	// FoundDir means a directory is named like the command.
	FoundDir
)

func isDirectory(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func isRegular(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func isExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

// classifyPath applies the lookup taxonomy to a single candidate path.
func classifyPath(path string) Resolution {
	switch {
	case isDirectory(path):
		return FoundDir
	case !isRegular(path):
		return NotFound
	case !isExecutable(path):
		return FoundNotExec
	default:
		return FoundExec
	}
}

// SearchPath resolves a bare command name (no path separator) against the
// colon-separated search path. The first executable regular file wins. If
// only non-executable files or directories match, the most specific
// classification is returned so callers can emit a precise diagnostic.
//
// An empty path segment means the current directory; the candidate is
// rendered as "./name" in that case, matching shell conventions.
func SearchPath(name, pathVar string) (string, Resolution) {
	if pathVar == "" {
		return "", NotFound
	}

	foundNoExec := false
	foundDir := false

	for _, seg := range strings.Split(pathVar, ":") {
		var candidate string
		if seg == "" {
			candidate = "./" + name
		} else {
			candidate = filepath.Join(seg, name)
		}

		switch classifyPath(candidate) {
		case FoundExec:
			return candidate, FoundExec
		case FoundNotExec:
			foundNoExec = true
		case FoundDir:
			foundDir = true
		}
	}

	if foundNoExec {
		return "", FoundNotExec
	}
	if foundDir {
		return "", FoundDir
	}
	return "", NotFound
}

// hasSlash reports whether argv[0] should be treated as a literal path
// rather than searched for.
func hasSlash(s string) bool {
	return strings.ContainsRune(s, '/')
}
