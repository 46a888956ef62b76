package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ncruces/go-strftime"

	"github.com/roach88/pipeaudit/internal/ir"
)

// CompilePattern compiles a pattern rule expression in its anchored form so
// that a value must match in full, not merely contain a match.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	return compilePattern(expr)
}

func compilePattern(expr string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + expr + `)$`)
}

// DateLayout converts a strftime format (e.g. "%Y-%m-%d") into a Go time layout.
func DateLayout(format string) (string, error) {
	layout, err := strftime.Layout(format)
	if err != nil {
		return "", fmt.Errorf("date format %q: %w", format, err)
	}
	return layout, nil
}

// typeAliases maps the dtype names accepted in contracts to runtime type names.
// The capitalised forms are the dataframe dtype names found in existing contracts.
var typeAliases = map[string]string{
	"int":     ir.TypeInt,
	"integer": ir.TypeInt,
	"int8":    ir.TypeInt,
	"int16":   ir.TypeInt,
	"int32":   ir.TypeInt,
	"int64":   ir.TypeInt,
	"uint8":   ir.TypeInt,
	"uint16":  ir.TypeInt,
	"uint32":  ir.TypeInt,
	"uint64":  ir.TypeInt,
	"float":   ir.TypeFloat,
	"double":  ir.TypeFloat,
	"float32": ir.TypeFloat,
	"float64": ir.TypeFloat,
	"string":  ir.TypeString,
	"str":     ir.TypeString,
	"utf8":    ir.TypeString,
	"text":    ir.TypeString,
	"bool":    ir.TypeBool,
	"boolean": ir.TypeBool,
	"number":  TypeNumber,
	"numeric": TypeNumber,
}

// NormalizeType resolves a contract dtype name (case-insensitive) to the
// runtime type name the type rule compares against.
func NormalizeType(name string) (string, bool) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
