package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
)

// Validation error codes (E100-E199)
const (
	ErrFloatLiteral = "E106" // float literals not allowed

	// BlueprintSpec errors (E120-E129)
	ErrBlueprintStructure = "E120" // undefined, duplicate or missing value
	ErrInvalidValueName   = "E121" // value name is not an identifier
	ErrUnknownOp          = "E122" // op is neither a value op nor a query
	ErrOpArity            = "E123" // wrong operand count for op
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled blueprint. Returns all errors found (does not
// fail-fast). Structural errors come first, followed by naming and
// operation errors.
func Validate(spec *ir.BlueprintSpec) []ValidationError {
	var errs []ValidationError

	for _, e := range spec.Validate() {
		errs = append(errs, ValidationError{
			Field:   e.Field,
			Message: e.Message,
			Code:    ErrBlueprintStructure,
		})
	}

	for i, in := range spec.Inputs {
		errs = append(errs, checkName(fmt.Sprintf("inputs[%d]", i), in)...)
	}

	for i, step := range spec.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.Out != "" {
			errs = append(errs, checkName(field+".out", step.Out)...)
		}

		want, known := operandCount(step.Op)
		if !known {
			errs = append(errs, ValidationError{
				Field:   field + ".op",
				Message: fmt.Sprintf("unknown op %q", step.Op),
				Code:    ErrUnknownOp,
			})
			continue
		}
		if len(step.Args) != want {
			errs = append(errs, ValidationError{
				Field:   field + ".args",
				Message: fmt.Sprintf("op %q takes %d operands, got %d", step.Op, want, len(step.Args)),
				Code:    ErrOpArity,
			})
		}
	}

	return errs
}

var valueNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkName(field, name string) []ValidationError {
	if name == "" || valueNamePattern.MatchString(name) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("%q is not a valid value name", name),
		Code:    ErrInvalidValueName,
	}}
}

// operandCount returns how many operands op takes besides self.
func operandCount(op string) (int, bool) {
	if _, ok := ir.QueryKind(op); ok {
		return 0, true
	}
	switch op {
	case peer.OpNeg, peer.OpSum:
		return 0, true
	}
	if peer.IsValueOp(op) {
		return 1, true
	}
	return 0, false
}
