package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidBlueprints(t *testing.T) {
	out, err := execute(NewCompileCommand(testOpts("text")), arithDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 blueprint(s)")
	assert.Contains(t, out, "add_one(x) → y: 1 step(s)")
	assert.Contains(t, out, "affine(x, b) → z: 3 step(s)")
	assert.NotContains(t, out, "Warnings:")
}

func TestCompileValidBlueprintsJSON(t *testing.T) {
	out, err := execute(NewCompileCommand(testOpts("json")), arithDir(t))
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Blueprints, 2)
	assert.Empty(t, result.Warnings)
}

func TestCompileReportsDeadSteps(t *testing.T) {
	dir := writeFiles(t, map[string]string{"dead.cue": `package blueprints

plan: wasteful: {
	inputs: ["x", "unused"]
	steps: [
		{op: "neg", self: "x", out: "n"},
		{op: "add", self: "x", args: [1], out: "y"},
	]
	outputs: ["y"]
}
`})

	out, err := execute(NewCompileCommand(testOpts("text")), dir)
	require.NoError(t, err, "dead steps are warnings")

	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "wasteful.steps[0]")
	assert.Contains(t, out, "wasteful.inputs[1]")
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(NewCompileCommand(testOpts("text")), arithDir(t), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote IR to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Blueprints, 2)
	assert.Equal(t, "add_one", result.Blueprints[0].Name)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantCode string
		wantMsg  string
	}{
		{
			name: "missing outputs",
			files: map[string]string{"a.cue": `package blueprints
plan: p: {inputs: ["x"], steps: []}
`},
			wantCode: ErrCodeMissingOutputs,
			wantMsg:  "outputs is required",
		},
		{
			name: "unknown op",
			files: map[string]string{"a.cue": `package blueprints
plan: p: {inputs: ["x"], steps: [{op: "pow", self: "x", out: "y"}], outputs: ["y"]}
`},
			wantCode: "E122",
			wantMsg:  "plan.p: steps[0].op",
		},
		{
			name: "float literal",
			files: map[string]string{"a.cue": `package blueprints
plan: p: {inputs: ["x"], steps: [{op: "mul", self: "x", args: [1.5], out: "y"}], outputs: ["y"]}
`},
			wantCode: "E106",
			wantMsg:  "float literals are forbidden",
		},
		{
			name: "no plan field",
			files: map[string]string{"a.cue": `package blueprints
other: 1
`},
			wantCode: ErrCodeNoBlueprints,
			wantMsg:  "no blueprints found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewCompileCommand(testOpts("text")), writeFiles(t, tt.files))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "✗ Compilation failed")
			assert.Contains(t, out, tt.wantCode)
			assert.Contains(t, out, tt.wantMsg)
		})
	}
}

func TestCompileCollectsAllErrorsJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.cue": `package blueprints
plan: one: {inputs: ["x"], steps: [], outputs: ["nope"]}
plan: two: {inputs: ["x"], steps: []}
`})

	out, err := execute(NewCompileCommand(testOpts("json")), dir)
	require.Error(t, err)

	var errs []CLIError
	resp := decodeResponse(t, out, &errs)
	assert.Equal(t, "error", resp.Status)
	require.Len(t, errs, 2)
	assert.Equal(t, "E120", errs[0].Code)
	assert.Equal(t, ErrCodeMissingOutputs, errs[1].Code)
}

func TestCompileMissingDirectory(t *testing.T) {
	out, err := execute(NewCompileCommand(testOpts("text")), "/nonexistent/blueprints")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(NewCompileCommand(testOpts("json")), t.TempDir())
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
}
