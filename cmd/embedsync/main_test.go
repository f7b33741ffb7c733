package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# Sample\n\n```csharp\nint x = 1;\n```\n\n```python\npass\n```\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.md")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestInspectCommand(t *testing.T) {
	out, err := execute(t, "inspect", sampleFile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "project primary")
	assert.Contains(t, out, "block 0 primary")
	assert.Contains(t, out, "converged=true")
	assert.Contains(t, out, `block 1 "python" not embedded`)
}

func TestExecCommandWrites(t *testing.T) {
	path := sampleFile(t)
	out, err := execute(t, "exec", path, "--block", "0", "--command", "toggleComment", "--write")
	require.NoError(t, err)
	assert.Equal(t, "// int x = 1;\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "```csharp\n// int x = 1;\n```")
	assert.Contains(t, string(data), "```python\npass\n```")
}

func TestExecCommandErrors(t *testing.T) {
	path := sampleFile(t)

	_, err := execute(t, "exec", path, "--block", "1", "--command", "format")
	assert.Error(t, err)

	_, err = execute(t, "exec", path, "--command", "format", "--arg", "novalue")
	assert.ErrorContains(t, err, "key=value")

	_, err = execute(t, "exec", path)
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand("format", []string{"tabWidth=2", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "format", cmd.Name)
	assert.Equal(t, map[string]string{"tabWidth": "2", "empty": ""}, cmd.Args)

	cmd, err = parseCommand("format", nil)
	require.NoError(t, err)
	assert.Nil(t, cmd.Args)

	_, err = parseCommand("format", []string{"=x"})
	assert.Error(t, err)
}
