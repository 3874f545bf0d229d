package cli

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/deferplan/internal/compiler"
	"github.com/roach88/deferplan/internal/ir"
)

// LoadMode controls how errors are handled during blueprint loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the blueprints loaded from a directory.
type LoadResult struct {
	Blueprints []*ir.BlueprintSpec
	CUEValue   cue.Value // the built package, for further lookups
	FileCount  int
}

// Lookup returns the blueprint with the given name.
func (r *LoadResult) Lookup(name string) (*ir.BlueprintSpec, bool) {
	for _, bp := range r.Blueprints {
		if bp.Name == name {
			return bp, true
		}
	}
	return nil, false
}

// LoadError is an error raised while loading blueprints, with the CLI error
// code it maps to.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadBlueprints loads and compiles the CUE blueprints in dir.
// A nil result means the directory itself could not be loaded.
func LoadBlueprints(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("blueprints directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing blueprints directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	specs, compileErrs := compiler.CompileBlueprints(value)
	result.Blueprints = specs

	var errs []error
	for _, cerr := range compileErrs {
		errs = append(errs, convertCompileError(cerr, ErrCodeGeneric))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Blueprints) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoBlueprints, Message: fmt.Sprintf("no blueprints found under %q", compiler.BlueprintRoot)})
	}
	return result, errs
}

// convertCompileError converts a compiler error to a LoadError with
// position info. fallback is used when no more specific code applies.
func convertCompileError(err error, fallback string) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code, msg := splitCode(compileErr.Message)
		if code == "" {
			code = MapFieldToErrorCode(compileErr.Field)
		}
		if code == ErrCodeGeneric {
			code = fallback
		}
		// Keep the "plan.<name>: " context added by wrapping.
		label := strings.TrimSuffix(err.Error(), compileErr.Error())
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s%s: %s", label, compileErr.Field, msg),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

var codePrefix = regexp.MustCompile(`^\[(E\d{3})\] `)

// splitCode separates a leading "[E123] " code from a compiler message.
func splitCode(msg string) (string, string) {
	m := codePrefix.FindStringSubmatch(msg)
	if m == nil {
		return "", msg
	}
	return m[1], strings.TrimPrefix(msg, m[0])
}

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // Input file could not be read
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeNoBlueprints = "E008" // CUE package has no plan field
	ErrCodeBadArgument  = "E009" // --arg is not a JSON value
	ErrCodeStore        = "E010" // database error

	// Blueprint structure errors
	ErrCodeMissingInputs  = "E101" // inputs field missing
	ErrCodeMissingOutputs = "E102" // outputs field missing
	ErrCodeStepField      = "E103" // step op or self missing
	ErrCodeInvalidType    = "E104" // field has the wrong type

	// Trace and execution errors
	ErrCodeUnknownPlan = "E130" // no blueprint or stored plan with that name
	ErrCodeTrace       = "E131" // blueprint failed while tracing
	ErrCodeExecute     = "E132" // replay failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "inputs":
		return ErrCodeMissingInputs
	case field == "outputs":
		return ErrCodeMissingOutputs
	case strings.HasSuffix(field, ".op"), strings.HasSuffix(field, ".self"):
		return ErrCodeStepField
	case strings.HasPrefix(field, "inputs["), strings.HasPrefix(field, "outputs["):
		return ErrCodeInvalidType
	case field == "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
