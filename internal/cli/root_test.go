package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "deferplan", cmd.Use)
	assert.Contains(t, cmd.Long, "replay")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"compile", "validate", "trace", "show", "replay", "run", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-file"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   map[string]string // name → default
	}{
		{"compile", map[string]string{"output": ""}},
		{"validate", map[string]string{"strict": "false"}},
		{"trace", map[string]string{"arg": "[]", "db": "", "owner": DefaultOwner, "call": "false"}},
		{"show", map[string]string{"db": "", "digest": "", "journal": "false", "peer": ""}},
		{"replay", map[string]string{"db": "", "digest": "", "arg": "[]", "owner": DefaultOwner}},
		{"run", map[string]string{"trace": "false"}},
		{"test", map[string]string{"update": "false", "filter": ""}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for name, def := range tt.flags {
				f := cmd.Flags().Lookup(name)
				require.NotNil(t, f, "--%s", name)
				assert.Equal(t, def, f.DefValue, "--%s", name)
			}
		})
	}

	compile, _, _ := root.Find([]string{"compile"})
	assert.Equal(t, "o", compile.Flags().Lookup("output").Shorthand)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLogFileReceivesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "deferplan.log")
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--log-file", logPath, "trace", arithDir(t), "add_one", "--arg", "1"})

	require.NoError(t, cmd.Execute())
	require.NoError(t, opts.Close())
	assert.Contains(t, out.String(), "✓ Traced")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"plan traced"`)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		assert.True(t, strings.HasPrefix(line, "{"), line)
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	errOut := &bytes.Buffer{}
	cmd.SetOut(io.Discard)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"-v", "trace", arithDir(t), "add_one", "--arg", "1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "plan traced")
	assert.NoError(t, opts.Close())
}
