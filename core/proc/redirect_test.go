package proc

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRedirectionsOrder(t *testing.T) {
	cmd := &Command{
		Argv:           []string{"prog"},
		InputFile:      "in",
		OutputFile:     "out",
		ErrorFile:      "err",
		StderrToStdout: true,
		StdoutToStderr: true,
		Heredoc:        "body\n",
		HasHeredoc:     true,
		Dir:            "/elsewhere",
	}

	var types []RedirType
	for _, r := range ExtractRedirections(cmd) {
		types = append(types, r.Type)
	}

	// The application order is a documented contract.
	assert.Equal(t, []RedirType{
		RedirIn, RedirOut, RedirErr, RedirDupErr, RedirDupOut, RedirHeredoc, RedirCwd,
	}, types)
}

func TestExtractRedirectionsEmpty(t *testing.T) {
	assert.Empty(t, ExtractRedirections(&Command{Argv: []string{"prog"}}))
}

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestApplyRedirectionsFiles(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(inPath, []byte("input data"), 0o644))

	null := devNull(t)
	cmd := &Command{Argv: []string{"prog"}, InputFile: inPath, OutputFile: outPath}

	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	defer io_.Close()

	data, err := io.ReadAll(io_.files[0])
	require.NoError(t, err)
	assert.Equal(t, "input data", string(data))

	_, err = io_.files[1].WriteString("output data")
	require.NoError(t, err)
	assert.Same(t, null, io_.files[2], "stderr untouched")

	io_.Close()
	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "output data", string(contents))
}

func TestApplyRedirectionsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	null := devNull(t)
	cmd := &Command{Argv: []string{"prog"}, AppendFile: path}

	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	_, err = io_.files[1].WriteString("second\n")
	require.NoError(t, err)
	io_.Close()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(contents))
}

func TestApplyRedirectionsDup(t *testing.T) {
	null := devNull(t)
	outFile := filepath.Join(t.TempDir(), "combined")

	cmd := &Command{Argv: []string{"prog"}, OutputFile: outFile, StderrToStdout: true}
	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	defer io_.Close()

	// 2>&1 after >file: stderr follows the redirected stdout.
	assert.Same(t, io_.files[1], io_.files[2])
	assert.NotSame(t, null, io_.files[2])
}

func TestApplyRedirectionsHeredoc(t *testing.T) {
	null := devNull(t)
	cmd := &Command{Argv: []string{"prog"}, Heredoc: "line one\nline two\n", HasHeredoc: true}

	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	defer io_.Close()

	data, err := io.ReadAll(io_.files[0])
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
}

func TestApplyRedirectionsHeredocOverridesInputFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(inPath, []byte("from file"), 0o644))

	null := devNull(t)
	cmd := &Command{
		Argv:       []string{"prog"},
		InputFile:  inPath,
		Heredoc:    "from heredoc",
		HasHeredoc: true,
	}

	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	defer io_.Close()

	data, err := io.ReadAll(io_.files[0])
	require.NoError(t, err)
	assert.Equal(t, "from heredoc", string(data))
}

func TestApplyRedirectionsFailureCleansUp(t *testing.T) {
	null := devNull(t)
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")

	cmd := &Command{Argv: []string{"prog"}, InputFile: missing}
	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	assert.Error(t, err)
	assert.Nil(t, io_)
}

func TestApplyRedirectionsCwdOverride(t *testing.T) {
	null := devNull(t)
	cmd := &Command{Argv: []string{"prog"}, Dir: "/somewhere"}

	io_, err := applyRedirections(ExtractRedirections(cmd), null, null, null)
	require.NoError(t, err)
	defer io_.Close()
	assert.Equal(t, "/somewhere", io_.dir)
}
