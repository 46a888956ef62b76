package ir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisDigestIsFixed(t *testing.T) {
	assert.Equal(t, "c248376ff966ba6fbed6e95550151fa8085feeae58cd035167081023e2cbcd5b", GenesisDigest())
}

func TestContentDigestStreamingMatchesBytes(t *testing.T) {
	data := []byte("{\"event\":\"run_start\"}\n{\"event\":\"run_complete\"}\n")

	streamed, err := ContentDigest(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, ContentDigestBytes(data), streamed)
	assert.Len(t, streamed, 64, "SHA-256 hex is 64 characters")
}

func TestContentDigestDetectsSingleByteChange(t *testing.T) {
	original := []byte("{\"result\":\"pass\"}\n")
	mutated := []byte("{\"result\":\"fail\"}\n")

	assert.NotEqual(t, ContentDigestBytes(original), ContentDigestBytes(mutated))
}

func TestContentDigestDomainSeparation(t *testing.T) {
	// Same bytes hashed under different domains must differ.
	data := []byte("abc")
	assert.NotEqual(t, ContentDigestBytes(data), hashWithDomain(DomainChain, data))
}

func TestChainDigestDependsOnBothInputs(t *testing.T) {
	genesis := GenesisDigest()
	c1 := ContentDigestBytes([]byte("day one"))
	c2 := ContentDigestBytes([]byte("day two"))

	chain1 := ChainDigest(c1, genesis)
	chain2 := ChainDigest(c2, chain1)

	assert.Equal(t, chain1, ChainDigest(c1, genesis), "chain digest must be deterministic")
	assert.NotEqual(t, chain2, ChainDigest(c2, genesis), "chain must depend on the previous link")
	assert.NotEqual(t, chain1, ChainDigest(c2, genesis), "chain must depend on the content")
}

func TestRuleIDDeterminism(t *testing.T) {
	lo, hi := 0.0, 120.0
	r := Range{Min: &lo, Max: &hi}

	id1 := RuleID(ColumnScope("age"), r)
	id2 := RuleID(ColumnScope("age"), r)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestRuleIDDistinguishesInstances(t *testing.T) {
	lo, hi, other := 0.0, 120.0, 150.0

	base := RuleID(ColumnScope("age"), Range{Min: &lo, Max: &hi})

	assert.NotEqual(t, base, RuleID(ColumnScope("height"), Range{Min: &lo, Max: &hi}), "different column")
	assert.NotEqual(t, base, RuleID(ColumnScope("age"), Range{Min: &lo, Max: &other}), "different parameter")
	assert.NotEqual(t, base, RuleID(ColumnScope("age"), Range{Min: &lo}), "missing bound")
	assert.NotEqual(t,
		RuleID(CompoundScope("a", "b"), CompoundUnique{}),
		RuleID(CompoundScope("b", "a"), CompoundUnique{}),
		"column order is part of the compound scope",
	)
	assert.NotEqual(t,
		RuleID(ColumnScope("x"), NotNull{}),
		RuleID(ColumnScope("x"), Unique{}),
		"different kind",
	)
}
