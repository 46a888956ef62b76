package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainLog     = "pipeaudit/log/v1"
	DomainChain   = "pipeaudit/chain/v1"
	DomainGenesis = "pipeaudit/genesis/v1"
	DomainRule    = "pipeaudit/rule/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GenesisDigest is the fixed chain value that precedes the first ledger entry.
func GenesisDigest() string {
	return hashWithDomain(DomainGenesis, nil)
}

// ContentDigest streams a period log through SHA-256 with the log domain prefix.
func ContentDigest(r io.Reader) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainLog))
	h.Write([]byte{0x00})
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("content digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentDigestBytes is ContentDigest over an in-memory log.
func ContentDigestBytes(data []byte) string {
	return hashWithDomain(DomainLog, data)
}

// ChainDigest links a period's content digest to the previous chain digest.
// Format: SHA256(DomainChain + 0x00 + content + prev), both hex encoded.
func ChainDigest(content, prev string) string {
	return hashWithDomain(DomainChain, []byte(content+prev))
}

// RuleID computes the content-addressed identity of a rule instance from
// its scope, kind and parameters. Two instances with the same ID are the
// same check; instances that differ in any parameter get different IDs.
func RuleID(scope Scope, r Rule) string {
	obj := map[string]any{
		"scope":  scopeObject(scope),
		"rule":   string(r.Kind()),
		"params": RuleParams(r),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Params are built from typed fields only; this cannot fail.
		panic(fmt.Sprintf("RuleID: %v", err))
	}
	return hashWithDomain(DomainRule, canonical)
}

func scopeObject(s Scope) map[string]any {
	obj := map[string]any{"kind": string(s.Kind)}
	switch s.Kind {
	case ScopeColumn:
		obj["column"] = s.Column
	case ScopeCompound:
		cols := make([]any, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = c
		}
		obj["columns"] = cols
	}
	return obj
}
