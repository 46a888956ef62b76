package compiler

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// checkShape unifies a decoded contract document with the #Contract
// definition and reports every violation. Definitions are closed, so
// misspelled keys surface here rather than being silently ignored.
func checkShape(doc map[string]any) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; a failure here is a programming error.
		panic(fmt.Sprintf("compiler: invalid embedded schema: %v", err))
	}

	def := schema.LookupPath(cue.ParsePath("#Contract"))
	value := def.Unify(ctx.Encode(doc))

	err := value.Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchema,
		}
		// Disjunctions report one error per failed branch; keep the first.
		key := ve.Field + "\x00" + ve.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		errs = append(errs, ve)
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{Message: err.Error(), Code: ErrSchema})
	}
	return errs
}
