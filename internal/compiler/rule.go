package compiler

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/rules"
)

// ruleParams lists the parameters each rule accepts.
var ruleParams = map[ir.RuleKind][]string{
	ir.KindNotNull:        nil,
	ir.KindUnique:         nil,
	ir.KindBoolean:        nil,
	ir.KindCompoundUnique: nil,
	ir.KindRange:          {"min", "max"},
	ir.KindRowCount:       {"min", "max"},
	ir.KindMeanBetween:    {"min", "max"},
	ir.KindStdevBetween:   {"min", "max"},
	ir.KindPattern:        {"pattern"},
	ir.KindMaxLength:      {"value"},
	ir.KindInSet:          {"values"},
	ir.KindNotInSet:       {"values"},
	ir.KindType:           {"dtype"},
	ir.KindOutlierSigma:   {"sigma"},
	ir.KindDateFormat:     {"format"},
	ir.KindCompleteness:   {"min_ratio"},
	ir.KindDistinctness:   {"min_ratio"},
}

// builder converts a shape-checked document into an ir.Contract,
// collecting every parameter problem it finds.
type builder struct {
	errs ValidationErrors
}

func (b *builder) add(field, code, format string, args ...any) {
	b.errs = append(b.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (b *builder) contract(doc map[string]any) *ir.Contract {
	c := &ir.Contract{}

	meta, _ := doc["contract"].(map[string]any)
	c.Name, _ = meta["name"].(string)
	c.Version, _ = meta["version"].(string)
	for _, t := range list(meta["tags"]) {
		if s, ok := t.(string); ok && !slices.Contains(c.Tags, s) {
			c.Tags = append(c.Tags, s)
		}
	}

	if file, ok := doc["file"].(map[string]any); ok {
		for i, raw := range list(file["validation"]) {
			if r := b.rule(fmt.Sprintf("file.validation[%d]", i), raw); r != nil {
				c.FileRules = append(c.FileRules, r)
			}
		}
	}

	seen := make(map[string]bool)
	for i, raw := range list(doc["columns"]) {
		col, _ := raw.(map[string]any)
		name, _ := col["name"].(string)
		if seen[name] {
			b.add(fmt.Sprintf("columns[%d].name", i), ErrDuplicateColumn, "column %q is declared more than once", name)
			continue
		}
		seen[name] = true

		cr := ir.ColumnRules{Name: name}
		for j, rr := range list(col["validation"]) {
			if r := b.rule(fmt.Sprintf("columns[%s].validation[%d]", name, j), rr); r != nil {
				cr.Rules = append(cr.Rules, r)
			}
		}
		c.Columns = append(c.Columns, cr)
	}

	for i, raw := range list(doc["compound_unique"]) {
		cu, _ := raw.(map[string]any)
		var cols []string
		for _, v := range list(cu["columns"]) {
			s, _ := v.(string)
			if slices.Contains(cols, s) {
				b.add(fmt.Sprintf("compound_unique[%d].columns", i), ErrCompoundColumns, "column %q listed more than once", s)
				continue
			}
			cols = append(cols, s)
		}
		if len(cols) < 2 {
			continue
		}
		c.Compound = append(c.Compound, ir.CompoundRule{Columns: cols, Rule: ir.CompoundUnique{}})
	}

	if loc := location(doc["source"]); loc != nil {
		c.Source = *loc
	}
	c.Destination = location(doc["destination"])
	c.Quarantine = location(doc["quarantine"])

	return c
}

func location(raw any) *ir.Location {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	loc := &ir.Location{}
	loc.Type, _ = m["type"].(string)
	loc.Location, _ = m["location"].(string)
	loc.Profile, _ = m["profile"].(string)
	loc.Format, _ = m["format"].(string)
	return loc
}

// rule builds one rule from its table. It returns nil when any parameter
// is invalid; the problems are recorded on the builder.
func (b *builder) rule(field string, raw any) ir.Rule {
	m, _ := raw.(map[string]any)
	name, _ := m["rule"].(string)
	kind := ir.RuleKind(name)

	allowed := ruleParams[kind]
	ok := true
	for _, k := range sortedKeys(m) {
		if k != "rule" && !slices.Contains(allowed, k) {
			b.add(field+"."+k, ErrUnknownParam, "parameter %q is not accepted by rule %s", k, kind)
			ok = false
		}
	}
	if !ok {
		return nil
	}

	p := params{b: b, field: field, kind: kind, m: m, ok: true}
	switch kind {
	case ir.KindNotNull:
		return ir.NotNull{}
	case ir.KindUnique:
		return ir.Unique{}
	case ir.KindBoolean:
		return ir.Boolean{}

	case ir.KindRange:
		lo, hi := p.optFloat("min"), p.optFloat("max")
		if !p.ok {
			return nil
		}
		if lo == nil && hi == nil {
			b.add(field, ErrMissingParam, "rule range requires min, max, or both")
			return nil
		}
		if lo != nil && hi != nil && *lo > *hi {
			b.add(field, ErrInvalidParam, "min (%s) must not exceed max (%s)", ir.FormatNumber(*lo), ir.FormatNumber(*hi))
			return nil
		}
		return p.done(ir.Range{Min: lo, Max: hi})

	case ir.KindRowCount:
		lo, hi := p.optCount("min"), p.optCount("max")
		if !p.ok {
			return nil
		}
		if lo != nil && hi != nil && *lo > *hi {
			b.add(field, ErrInvalidParam, "min (%d) must not exceed max (%d)", *lo, *hi)
			return nil
		}
		return p.done(ir.RowCount{Min: lo, Max: hi})

	case ir.KindMeanBetween, ir.KindStdevBetween:
		lo, hi := p.reqFloat("min"), p.reqFloat("max")
		if !p.ok {
			return nil
		}
		if lo > hi {
			b.add(field, ErrInvalidParam, "min (%s) must not exceed max (%s)", ir.FormatNumber(lo), ir.FormatNumber(hi))
			return nil
		}
		if kind == ir.KindStdevBetween {
			if lo < 0 {
				b.add(field+".min", ErrInvalidParam, "standard deviation bound must not be negative")
				return nil
			}
			return ir.StdevBetween{Min: lo, Max: hi}
		}
		return ir.MeanBetween{Min: lo, Max: hi}

	case ir.KindPattern:
		expr := p.reqString("pattern")
		if !p.ok {
			return nil
		}
		re, err := rules.CompilePattern(expr)
		if err != nil {
			b.add(field+".pattern", ErrInvalidPattern, "%v", err)
			return nil
		}
		return ir.Pattern{Expr: expr, Re: re}

	case ir.KindMaxLength:
		n := p.optCount("value")
		if n == nil {
			if p.ok {
				p.missing("value")
			}
			return nil
		}
		return ir.MaxLength{N: int(*n)}

	case ir.KindInSet, ir.KindNotInSet:
		vals := p.values()
		if !p.ok {
			return nil
		}
		if kind == ir.KindInSet {
			return ir.InSet{Values: vals}
		}
		return ir.NotInSet{Values: vals}

	case ir.KindType:
		dtype := p.reqString("dtype")
		if !p.ok {
			return nil
		}
		expected, known := rules.NormalizeType(dtype)
		if !known {
			b.add(field+".dtype", ErrInvalidType, "unknown type %q", dtype)
			return nil
		}
		return ir.Type{Expected: expected}

	case ir.KindOutlierSigma:
		k := p.reqFloat("sigma")
		if p.ok && k <= 0 {
			b.add(field+".sigma", ErrInvalidParam, "sigma must be greater than zero")
			return nil
		}
		return p.done(ir.OutlierSigma{K: k})

	case ir.KindDateFormat:
		format := p.reqString("format")
		if !p.ok {
			return nil
		}
		layout, err := rules.DateLayout(format)
		if err != nil {
			b.add(field+".format", ErrInvalidFormat, "%v", err)
			return nil
		}
		return ir.DateFormat{Format: format, Layout: layout}

	case ir.KindCompleteness:
		return p.done(ir.Completeness{MinRatio: p.ratio()})

	case ir.KindDistinctness:
		return p.done(ir.Distinctness{MinRatio: p.ratio()})

	default:
		b.add(field+".rule", ErrSchema, "unknown rule %q", name)
		return nil
	}
}

// params reads typed parameters from one rule table.
type params struct {
	b     *builder
	field string
	kind  ir.RuleKind
	m     map[string]any
	ok    bool
}

func (p *params) fail(key, code, format string, args ...any) {
	p.b.add(p.field+"."+key, code, format, args...)
	p.ok = false
}

func (p *params) missing(key string) {
	p.fail(key, ErrMissingParam, "rule %s requires parameter %q", p.kind, key)
}

// done returns r if every parameter read so far was valid.
func (p *params) done(r ir.Rule) ir.Rule {
	if !p.ok {
		return nil
	}
	return r
}

func (p *params) optFloat(key string) *float64 {
	raw, present := p.m[key]
	if !present {
		return nil
	}
	f, ok := number(raw)
	if !ok {
		p.fail(key, ErrInvalidParam, "%s must be a number", key)
		return nil
	}
	return &f
}

func (p *params) reqFloat(key string) float64 {
	if _, present := p.m[key]; !present {
		p.missing(key)
		return 0
	}
	f := p.optFloat(key)
	if f == nil {
		return 0
	}
	return *f
}

// optCount reads a non-negative integer parameter.
func (p *params) optCount(key string) *int64 {
	raw, present := p.m[key]
	if !present {
		return nil
	}
	n, ok := raw.(int64)
	if !ok || n < 0 {
		p.fail(key, ErrInvalidParam, "%s must be a non-negative integer", key)
		return nil
	}
	return &n
}

func (p *params) reqString(key string) string {
	raw, present := p.m[key]
	if !present {
		p.missing(key)
		return ""
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		p.fail(key, ErrInvalidParam, "%s must be a non-empty string", key)
		return ""
	}
	return s
}

func (p *params) ratio() float64 {
	r := p.reqFloat("min_ratio")
	if p.ok && (r < 0 || r > 1) {
		p.fail("min_ratio", ErrInvalidParam, "min_ratio must be between 0 and 1")
	}
	return r
}

func (p *params) values() []ir.Value {
	raw, present := p.m["values"]
	if !present {
		p.missing("values")
		return nil
	}
	items := list(raw)
	if len(items) == 0 {
		p.fail("values", ErrInvalidParam, "values must not be empty")
		return nil
	}
	vals := make([]ir.Value, len(items))
	for i, item := range items {
		vals[i] = ir.ValueOf(item)
	}
	return vals
}

func number(raw any) (float64, bool) {
	switch n := raw.(type) {
	case int64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func list(raw any) []any {
	l, _ := raw.([]any)
	return l
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
