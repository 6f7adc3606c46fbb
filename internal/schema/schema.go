// Package schema validates sketch documents against an embedded CUE schema.
//
// The schema checks structure and enumerations: field presence, id syntax,
// essentiality and monotonicity values, observation values and property
// kinds. Cross references (regulation endpoints, layout bijection) are
// checked by ir.CheckIntegrity, which LoadFile runs after the schema.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/sketchsync/internal/ir"
)

//go:embed sketch.cue
var sketchSchema string

// Validation error codes (E200-E209)
const (
	ErrSyntax    = "E200" // document is not valid JSON/CUE
	ErrSchema    = "E201" // document does not satisfy #Sketch
	ErrIntegrity = "E202" // cross reference violation
	ErrEncode    = "E203" // sketch could not be encoded
)

// ValidationError is one schema violation.
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

// Errors is every violation found in one document.
type Errors []ValidationError

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no validation errors"
	case 1:
		return es[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", es[0].Error(), len(es)-1)
}

// Validator holds the compiled schema. A cue.Context is not safe for
// concurrent use, so calls are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	sketch cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(sketchSchema, cue.Filename("sketch.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile sketch schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Sketch"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile sketch schema: #Sketch not defined")
	}
	return &Validator{ctx: ctx, sketch: def}, nil
}

// ValidateSketch checks an in-memory sketch. It satisfies backend.Validator.
func (v *Validator) ValidateSketch(s ir.Sketch) error {
	data, err := json.Marshal(ir.Normalize(s))
	if err != nil {
		return Errors{{Field: "sketch", Message: err.Error(), Code: ErrEncode}}
	}
	return v.ValidateJSON("sketch.json", data)
}

// ValidateJSON checks a JSON document. name is used in positions only.
// The returned error is an Errors value.
func (v *Validator) ValidateJSON(name string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.CompileBytes(data, cue.Filename(name))
	if err := doc.Err(); err != nil {
		return formatCUEError(ErrSyntax, name, err)
	}
	if err := v.sketch.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(ErrSchema, name, err)
	}
	return nil
}

// LoadFile reads, validates and decodes a sketch document. The result is
// normalized.
func (v *Validator) LoadFile(path string) (ir.Sketch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Sketch{}, fmt.Errorf("read sketch: %w", err)
	}
	return v.Load(path, data)
}

// Load validates and decodes a sketch document held in memory.
func (v *Validator) Load(name string, data []byte) (ir.Sketch, error) {
	if err := v.ValidateJSON(name, data); err != nil {
		return ir.Sketch{}, err
	}

	var s ir.Sketch
	if err := json.Unmarshal(data, &s); err != nil {
		return ir.Sketch{}, Errors{{Field: "sketch", Message: err.Error(), Code: ErrSyntax}}
	}
	s = ir.Normalize(s)

	if violations := ir.CheckIntegrity(s); len(violations) > 0 {
		errs := make(Errors, 0, len(violations))
		for _, iv := range violations {
			errs = append(errs, ValidationError{Field: iv.Kind, Message: iv.Subject, Code: ErrIntegrity})
		}
		return ir.Sketch{}, errs
	}
	return s, nil
}

// formatCUEError flattens CUE errors, keeping the line in the validated
// document when one is known.
func formatCUEError(code, name string, err error) error {
	cueErrs := errors.Errors(err)
	if len(cueErrs) == 0 {
		return Errors{{Field: "sketch", Message: err.Error(), Code: code}}
	}

	out := make(Errors, 0, len(cueErrs))
	seen := make(map[string]bool, len(cueErrs))
	for _, e := range cueErrs {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		}
		for _, pos := range errors.Positions(e) {
			if pos.Filename() == name {
				ve.Line = pos.Line()
				break
			}
		}
		key := ve.Error()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ve)
	}
	return out
}

func fieldPath(path []string) string {
	if len(path) == 0 {
		return "sketch"
	}
	return strings.Join(path, ".")
}
