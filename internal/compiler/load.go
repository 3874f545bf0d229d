package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/deferplan/internal/ir"
)

// BlueprintRoot is the top-level CUE field holding blueprints by name.
const BlueprintRoot = "plan"

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// BuildDir loads the CUE package in dir and builds it into one value.
func BuildDir(dir string) (cue.Value, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileBlueprints compiles every blueprint under the plan field of root.
// It does not stop at the first failure; errors carry the blueprint label.
func CompileBlueprints(root cue.Value) ([]*ir.BlueprintSpec, []error) {
	plansVal := root.LookupPath(cue.ParsePath(BlueprintRoot))
	if !plansVal.Exists() {
		return nil, nil
	}
	iter, err := plansVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []*ir.BlueprintSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileBlueprint(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", BlueprintRoot, iter.Label(), err))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// LoadBlueprints builds dir and compiles its blueprints, keyed by name.
// Any compile failure fails the whole load.
func LoadBlueprints(dir string) (map[string]*ir.BlueprintSpec, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	root, err := BuildDir(dir)
	if err != nil {
		return nil, err
	}
	specs, errs := CompileBlueprints(root)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	byName := make(map[string]*ir.BlueprintSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	return byName, nil
}
