package cli

import (
	"fmt"

	"cuelang.org/go/cue"
	"github.com/spf13/cobra"

	"github.com/roach88/deferplan/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat warnings as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []BlueprintWarning         `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <blueprints-dir>",
		Short: "Report every problem in a blueprint directory",
		Long: `Validate CUE blueprints without producing IR.

Unlike compile, which stops each blueprint at its first error, validate
reports all structural, naming and arity errors, plus dead-step warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadBlueprints(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseLoadError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	result := validateAll(loadResult.CUEValue, formatter)
	if opts.Strict {
		for _, w := range result.Warnings {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   w.Blueprint + "." + w.Field,
				Message: w.Message,
				Code:    ErrCodeGeneric,
			})
		}
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateAll parses every blueprint and collects all validation errors and
// warnings. Only valid blueprints are analyzed for dead steps.
func validateAll(value cue.Value, formatter *OutputFormatter) ValidationResult {
	var result ValidationResult

	plans := value.LookupPath(cue.ParsePath(compiler.BlueprintRoot))
	if !plans.Exists() {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   compiler.BlueprintRoot,
			Message: "no blueprints found",
			Code:    ErrCodeNoBlueprints,
		})
		return result
	}
	iter, err := plans.Fields()
	if err != nil {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   compiler.BlueprintRoot,
			Message: err.Error(),
			Code:    ErrCodeBuildFailed,
		})
		return result
	}

	for iter.Next() {
		name := iter.Label()
		formatter.VerboseLog("Validating blueprint: %s", name)

		spec, err := compiler.ParseBlueprint(iter.Value())
		if err != nil {
			loadErr := convertCompileError(err, ErrCodeGeneric)
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   compiler.BlueprintRoot + "." + name,
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
			continue
		}

		errs := compiler.Validate(spec)
		for _, e := range errs {
			e.Field = compiler.BlueprintRoot + "." + name + "." + e.Field
			e.Line = iter.Value().Pos().Line()
			result.Errors = append(result.Errors, e)
		}
		if len(errs) > 0 {
			continue
		}
		for _, w := range compiler.AnalyzeDeadSteps(spec) {
			result.Warnings = append(result.Warnings, BlueprintWarning{Blueprint: name, Warning: w})
		}
	}
	return result
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ All blueprints valid")
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  %s %s.%s: %s\n", w.Level, w.Blueprint, w.Field, w.Message)
	}
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", e.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
