package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": 1, "a": "x", "c": true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":true}`, string(got))
}

func TestMarshalCanonicalUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FF21
	// in UTF-16 even though the UTF-8 bytes sort after.
	got, err := MarshalCanonical(map[string]any{"Ａ": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"Ａ\":1}", string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonicalEscapesControl(t *testing.T) {
	got, err := MarshalCanonical("a\"b\\c\n\x01")
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\n\u0001"`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	a, err := MarshalCanonical("caf\u00e9")
	require.NoError(t, err)
	b, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshalCanonicalRejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestRuleParamsEncodesFloatsAsStrings(t *testing.T) {
	p := RuleParams(OutlierSigma{K: 3})
	assert.Equal(t, map[string]any{"sigma": "3"}, p)

	lo := 0.5
	p = RuleParams(Range{Min: &lo})
	assert.Equal(t, map[string]any{"min": "0.5"}, p)
}
