package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"messages": 3}))
	var data map[string]int
	resp := decodeResponse(t, buf.String(), &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 3, data["messages"])

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeUnknownPlan, `no blueprint "p"`, []string{"add_one"}))
	resp = decodeResponse(t, buf.String(), nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownPlan, resp.Error.Code)
	assert.Equal(t, `no blueprint "p"`, resp.Error.Message)
	assert.Equal(t, []any{"add_one"}, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("3 plan(s)"))
	f.Printf("digest %s\n", "abc")
	require.NoError(t, f.Error(ErrCodeStore, "database is locked", map[string]string{"path": "x.db"}))

	out := buf.String()
	assert.Contains(t, out, "3 plan(s)\n")
	assert.Contains(t, out, "digest abc\n")
	assert.Contains(t, out, "Error [E010]: database is locked")
	assert.NotContains(t, out, "Details:")

	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeStore, "database is locked", map[string]string{"path": "x.db"}))
	assert.Contains(t, buf.String(), "Details: map[path:x.db]")
}

func TestOutputFormatter_PrintfSilentInJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	f.Printf("hello %d", 1)
	assert.Empty(t, buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		errOut  bool
	}{
		{"quiet", false, true},
		{"to stderr", true, true},
		{"falls back to stdout", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: out, Verbose: tt.verbose}
			if tt.errOut {
				f.ErrWriter = errOut
			}

			f.VerboseLog("Found %d CUE file(s)", 2)

			switch {
			case !tt.verbose:
				assert.Empty(t, out.String())
				assert.Empty(t, errOut.String())
			case tt.errOut:
				assert.Empty(t, out.String())
				assert.Equal(t, "Found 2 CUE file(s)\n", errOut.String())
			default:
				assert.Equal(t, "Found 2 CUE file(s)\n", out.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	plain := NewExitError(ExitCommandError, "E005: not found")
	assert.Equal(t, "E005: not found", plain.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(plain))

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitCommandError, "failed to write IR", cause)
	assert.Equal(t, "failed to write IR: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("replay: %w", NewExitError(ExitFailure, "nondeterministic"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("untyped")))
}
