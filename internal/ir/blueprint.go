package ir

import "fmt"

// Query step ops. They ask the traced value a question and therefore force
// eager execution while tracing.
const (
	OpGet    = "get"
	OpShape  = "shape"
	OpIsNone = "is_none"
)

// QueryKind maps a query step op to its message kind.
func QueryKind(op string) (MsgKind, bool) {
	switch op {
	case OpGet:
		return MsgObjReq, true
	case OpShape:
		return MsgGetShape, true
	case OpIsNone:
		return MsgIsNone, true
	}
	return 0, false
}

// BlueprintSpec is a compiled, declarative blueprint: a straight-line
// program over named values.
type BlueprintSpec struct {
	Name    string     `json:"name"`
	Inputs  []string   `json:"inputs"`
	Steps   []StepSpec `json:"steps"`
	Outputs []string   `json:"outputs"`
}

// StepSpec is one operation of a blueprint.
type StepSpec struct {
	Op   string    `json:"op"`
	Self string    `json:"self"`
	Args []Operand `json:"args,omitempty"`
	Out  string    `json:"out,omitempty"` // empty for query steps
}

// Operand is either a reference to a named value or a literal.
type Operand struct {
	Ref     string  `json:"ref,omitempty"`
	Literal IRValue `json:"literal,omitempty"`
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the blueprint against schema rules.
// Returns all errors (not fail-fast). The output count is checked when the
// plan is built, not here.
func (b *BlueprintSpec) Validate() []ValidationError {
	var errs []ValidationError

	defined := make(map[string]bool)
	for i, in := range b.Inputs {
		if in == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("inputs[%d]", i),
				Message: "input name must not be empty",
			})
			continue
		}
		if defined[in] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("inputs[%d]", i),
				Message: fmt.Sprintf("duplicate input name: %q", in),
			})
		}
		defined[in] = true
	}

	for i, step := range b.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.Op == "" {
			errs = append(errs, ValidationError{Field: field + ".op", Message: "op is required"})
		}
		if !defined[step.Self] {
			errs = append(errs, ValidationError{
				Field:   field + ".self",
				Message: fmt.Sprintf("undefined value: %q", step.Self),
			})
		}
		for j, arg := range step.Args {
			if arg.Ref != "" && !defined[arg.Ref] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.args[%d]", field, j),
					Message: fmt.Sprintf("undefined value: %q", arg.Ref),
				})
			}
			if arg.Ref == "" && arg.Literal == nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.args[%d]", field, j),
					Message: "operand needs a ref or a literal",
				})
			}
		}

		_, isQuery := QueryKind(step.Op)
		switch {
		case isQuery && step.Out != "":
			errs = append(errs, ValidationError{
				Field:   field + ".out",
				Message: fmt.Sprintf("query step %q has no output", step.Op),
			})
		case !isQuery && step.Out == "":
			errs = append(errs, ValidationError{Field: field + ".out", Message: "out is required"})
		case !isQuery && defined[step.Out]:
			errs = append(errs, ValidationError{
				Field:   field + ".out",
				Message: fmt.Sprintf("value %q is already defined", step.Out),
			})
		}
		if step.Out != "" {
			defined[step.Out] = true
		}
	}

	for i, out := range b.Outputs {
		if !defined[out] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: fmt.Sprintf("undefined value: %q", out),
			})
		}
	}

	return errs
}
