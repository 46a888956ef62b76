package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractInstancesOrder(t *testing.T) {
	c := &Contract{
		Name:      "orders",
		FileRules: []Rule{RowCount{}},
		Columns: []ColumnRules{
			{Name: "zeta", Rules: []Rule{NotNull{}, Unique{}}},
			{Name: "alpha", Rules: []Rule{Boolean{}}},
		},
		Compound: []CompoundRule{{Columns: []string{"a", "b"}, Rule: CompoundUnique{}}},
	}

	inst := c.Instances()
	got := make([]string, len(inst))
	for i, ri := range inst {
		got[i] = fmt.Sprintf("%s/%s", ri.Scope, ri.Rule.Kind())
	}

	// Columns keep declaration order, not alphabetical order.
	assert.Equal(t, []string{
		"file/row_count",
		"column zeta/not_null",
		"column zeta/unique",
		"column alpha/boolean",
		"columns (a, b)/compound_unique",
	}, got)
}

func TestVerdictOf(t *testing.T) {
	assert.Equal(t, VerdictPass, VerdictOf(nil))
	assert.Equal(t, VerdictPass, VerdictOf([]Outcome{{Status: StatusPass}, {Status: StatusSkip}}))
	assert.Equal(t, VerdictFail, VerdictOf([]Outcome{{Status: StatusSkip}, {Status: StatusFail}}))
}

func TestErrorKinds(t *testing.T) {
	base := Errorf(ErrSeal, "period already sealed").WithPeriod("2024-01-01")
	wrapped := fmt.Errorf("seal: %w", base)

	assert.True(t, IsSealError(wrapped))
	assert.False(t, IsTamperDetected(wrapped))
	assert.Equal(t, ErrSeal, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Contains(t, base.Error(), "period=2024-01-01")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrLogWrite, cause, "append failed").WithContract("orders")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "LOG_WRITE_ERROR: append failed (contract=orders): disk full", err.Error())
}

func TestPeriods(t *testing.T) {
	prev, err := PreviousPeriod("2024-03-01")
	assert.NoError(t, err)
	assert.Equal(t, "2024-02-29", prev)

	_, err = ParsePeriod("2024/03/01")
	assert.Error(t, err)
}
