package ir

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Contract is the in-memory form of one validation contract.
// Rule lists are immutable once the contract has been compiled.
type Contract struct {
	Name    string
	Version string
	Tags    []string

	// FileRules apply to the dataset as a whole.
	FileRules []Rule

	// Columns holds per-column rule lists in contract declaration order.
	Columns []ColumnRules

	// Compound holds multi-column rules in declaration order.
	Compound []CompoundRule

	Source      Location
	Destination *Location
	Quarantine  *Location
}

// ColumnRules is the ordered rule list attached to one column.
type ColumnRules struct {
	Name  string
	Rules []Rule
}

// CompoundRule attaches a rule to a set of two or more columns.
type CompoundRule struct {
	Columns []string
	Rule    Rule
}

// Location describes where a dataset is read from or routed to.
// The descriptor is opaque to the engine; connectors resolve it.
type Location struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Profile  string `json:"profile,omitempty"`
	Format   string `json:"format,omitempty"`
}

// String renders the location as type:location for logs and audit records.
func (l Location) String() string {
	if l.Type == "" {
		return l.Location
	}
	return l.Type + ":" + l.Location
}

// Instances returns every rule instance of the contract in emission order:
// file rules, then column rules in declaration order, then compound rules.
func (c *Contract) Instances() []RuleInstance {
	var out []RuleInstance
	for _, r := range c.FileRules {
		out = append(out, RuleInstance{Scope: FileScope(), Rule: r})
	}
	for _, col := range c.Columns {
		for _, r := range col.Rules {
			out = append(out, RuleInstance{Scope: ColumnScope(col.Name), Rule: r})
		}
	}
	for _, cr := range c.Compound {
		out = append(out, RuleInstance{Scope: CompoundScope(cr.Columns...), Rule: cr.Rule})
	}
	return out
}

// ScopeKind identifies what a rule instance is attached to.
type ScopeKind string

const (
	ScopeFile     ScopeKind = "file"
	ScopeColumn   ScopeKind = "column"
	ScopeCompound ScopeKind = "compound"
)

// Scope is the target of a rule instance.
type Scope struct {
	Kind    ScopeKind
	Column  string   // set for ScopeColumn
	Columns []string // set for ScopeCompound
}

// FileScope returns the whole-dataset scope.
func FileScope() Scope { return Scope{Kind: ScopeFile} }

// ColumnScope returns a single column scope.
func ColumnScope(name string) Scope { return Scope{Kind: ScopeColumn, Column: name} }

// CompoundScope returns a multi-column scope.
func CompoundScope(columns ...string) Scope {
	return Scope{Kind: ScopeCompound, Columns: append([]string(nil), columns...)}
}

// String renders the scope for diagnostics.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeColumn:
		return "column " + s.Column
	case ScopeCompound:
		return "columns (" + strings.Join(s.Columns, ", ") + ")"
	default:
		return "file"
	}
}

// RuleInstance is one configured rule attached to a scope.
type RuleInstance struct {
	Scope Scope
	Rule  Rule
}

// ID returns the content-addressed identity of the instance.
func (ri RuleInstance) ID() string {
	return RuleID(ri.Scope, ri.Rule)
}

// RuleKind names a rule in the fixed vocabulary.
type RuleKind string

const (
	KindNotNull        RuleKind = "not_null"
	KindUnique         RuleKind = "unique"
	KindRange          RuleKind = "range"
	KindPattern        RuleKind = "pattern"
	KindMaxLength      RuleKind = "max_length"
	KindInSet          RuleKind = "in_set"
	KindNotInSet       RuleKind = "not_in_set"
	KindType           RuleKind = "type"
	KindOutlierSigma   RuleKind = "outlier_sigma"
	KindDateFormat     RuleKind = "date_format"
	KindCompleteness   RuleKind = "completeness"
	KindDistinctness   RuleKind = "distinctness"
	KindRowCount       RuleKind = "row_count"
	KindCompoundUnique RuleKind = "compound_unique"
	KindBoolean        RuleKind = "boolean"
	KindMeanBetween    RuleKind = "mean_between"
	KindStdevBetween   RuleKind = "stdev_between"
)

// Rule is a sealed tagged variant over the rule vocabulary.
// Each variant carries its typed, load-time validated parameters.
type Rule interface {
	Kind() RuleKind
	rule() // Sealed
}

// NotNull fails when any value is null.
type NotNull struct{}

// Unique fails when any non-null value repeats.
type Unique struct{}

// Range checks numeric-coercible values against inclusive bounds.
// At least one bound is set.
type Range struct {
	Min *float64
	Max *float64
}

// Pattern requires every non-null value to fully match Expr.
type Pattern struct {
	Expr string
	Re   *regexp.Regexp // anchored form of Expr, compiled at load time
}

// MaxLength bounds the character length of every non-null value.
type MaxLength struct {
	N int
}

// InSet requires every non-null value to be one of Values.
type InSet struct {
	Values []Value
}

// NotInSet requires no non-null value to be one of Values.
type NotInSet struct {
	Values []Value
}

// Type requires every non-null value to have runtime type Expected,
// which is one of the Type* names or "number".
type Type struct {
	Expected string
}

// OutlierSigma flags values further than K population standard
// deviations from the mean.
type OutlierSigma struct {
	K float64
}

// DateFormat requires every non-null value to parse under Format.
// Layout is the equivalent Go time layout, derived at load time.
type DateFormat struct {
	Format string
	Layout string
}

// Completeness requires the non-null ratio to reach MinRatio.
type Completeness struct {
	MinRatio float64
}

// Distinctness requires distinct/non-null to reach MinRatio.
type Distinctness struct {
	MinRatio float64
}

// RowCount bounds the dataset row count. Either bound may be nil.
type RowCount struct {
	Min *int64
	Max *int64
}

// CompoundUnique requires the tuple across the scope columns to be unique.
type CompoundUnique struct{}

// Boolean requires every non-null value to be a boolean or boolean text.
type Boolean struct{}

// MeanBetween requires the mean of numeric values to lie in [Min, Max].
type MeanBetween struct {
	Min float64
	Max float64
}

// StdevBetween requires the sample standard deviation of numeric values
// to lie in [Min, Max].
type StdevBetween struct {
	Min float64
	Max float64
}

func (NotNull) Kind() RuleKind        { return KindNotNull }
func (Unique) Kind() RuleKind         { return KindUnique }
func (Range) Kind() RuleKind          { return KindRange }
func (Pattern) Kind() RuleKind        { return KindPattern }
func (MaxLength) Kind() RuleKind      { return KindMaxLength }
func (InSet) Kind() RuleKind          { return KindInSet }
func (NotInSet) Kind() RuleKind       { return KindNotInSet }
func (Type) Kind() RuleKind           { return KindType }
func (OutlierSigma) Kind() RuleKind   { return KindOutlierSigma }
func (DateFormat) Kind() RuleKind     { return KindDateFormat }
func (Completeness) Kind() RuleKind   { return KindCompleteness }
func (Distinctness) Kind() RuleKind   { return KindDistinctness }
func (RowCount) Kind() RuleKind       { return KindRowCount }
func (CompoundUnique) Kind() RuleKind { return KindCompoundUnique }
func (Boolean) Kind() RuleKind        { return KindBoolean }
func (MeanBetween) Kind() RuleKind    { return KindMeanBetween }
func (StdevBetween) Kind() RuleKind   { return KindStdevBetween }

func (NotNull) rule()        {}
func (Unique) rule()         {}
func (Range) rule()          {}
func (Pattern) rule()        {}
func (MaxLength) rule()      {}
func (InSet) rule()          {}
func (NotInSet) rule()       {}
func (Type) rule()           {}
func (OutlierSigma) rule()   {}
func (DateFormat) rule()     {}
func (Completeness) rule()   {}
func (Distinctness) rule()   {}
func (RowCount) rule()       {}
func (CompoundUnique) rule() {}
func (Boolean) rule()        {}
func (MeanBetween) rule()    {}
func (StdevBetween) rule()   {}

// Status is the result of evaluating one rule instance.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Outcome is the immutable result of one rule evaluation.
type Outcome struct {
	RuleID   string
	Kind     RuleKind
	Scope    Scope
	Status   Status
	Details  string
	Measured *float64 // observed value or ratio, when one exists
}

// Verdict is the overall result of a run.
type Verdict string

const (
	// VerdictPass means no outcome failed and the audit trail is complete.
	VerdictPass Verdict = "pass"

	// VerdictFail means at least one outcome failed.
	VerdictFail Verdict = "fail"

	// VerdictError means the run could not be completed or recorded.
	// A run whose audit trail was not durably written never reports pass.
	VerdictError Verdict = "error"
)

// VerdictOf computes the verdict for a complete set of outcomes.
// Skips never affect the verdict.
func VerdictOf(outcomes []Outcome) Verdict {
	for _, o := range outcomes {
		if o.Status == StatusFail {
			return VerdictFail
		}
	}
	return VerdictPass
}

// RunContext carries the per-run metadata attached to every audit record.
// It is created at orchestration start and read-only thereafter.
type RunContext struct {
	ContractName     string
	ContractVersion  string
	ExecutorID       string
	RunTimestamp     time.Time
	SourceIdentifier string
	RunID            string
}

// LedgerEntry is one sealed period in the hash chain.
type LedgerEntry struct {
	Seq           int64     `json:"seq"`
	PeriodID      string    `json:"period_id"`
	ContentDigest string    `json:"content_digest"`
	ChainDigest   string    `json:"chain_digest"`
	SealedAt      time.Time `json:"sealed_at"`
}

// String renders a ledger entry as a single diagnostic line.
func (e LedgerEntry) String() string {
	return fmt.Sprintf("#%d %s content=%s chain=%s", e.Seq, e.PeriodID, e.ContentDigest, e.ChainDigest)
}
