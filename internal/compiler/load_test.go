package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestLoadBlueprints(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "double.cue", `
package blueprints

plan: double: {
	inputs: ["x"]
	steps: [{op: "mul", self: "x", args: [2], out: "y"}]
	outputs: ["y"]
}
`)
	writeCUE(t, dir, "total.cue", `
package blueprints

plan: total: {
	inputs: ["v"]
	steps: [{op: "sum", self: "v", out: "s"}]
	outputs: ["s"]
}
`)

	specs, err := LoadBlueprints(dir)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, []string{"x"}, specs["double"].Inputs)
	assert.Equal(t, "sum", specs["total"].Steps[0].Op)
}

func TestLoadBlueprintsNoFiles(t *testing.T) {
	_, err := LoadBlueprints(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

func TestLoadBlueprintsReportsEveryFailure(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package blueprints

plan: first: {
	inputs: ["x"]
	outputs: ["nope"]
}

plan: second: {
	inputs: ["x"]
	steps: [{op: "pow", self: "x", args: [2], out: "y"}]
	outputs: ["y"]
}
`)

	_, err := LoadBlueprints(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan.first")
	assert.Contains(t, err.Error(), "plan.second")
}

func TestCompileBlueprintsMissingRoot(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "other.cue", "package blueprints\n\nsettings: debug: true\n")

	root, err := BuildDir(dir)
	require.NoError(t, err)

	specs, errs := CompileBlueprints(root)
	assert.Empty(t, specs)
	assert.Empty(t, errs)
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	writeCUE(t, dir, "a.cue", "package x\n")
	writeCUE(t, filepath.Join(dir, "nested"), "b.cue", "package x\n")
	writeCUE(t, dir, "notes.txt", "ignored")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
