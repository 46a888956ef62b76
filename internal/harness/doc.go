// Package harness runs contract scenarios: a contract, an inline dataset,
// and the expected verdict and audit trail, all described in one YAML file.
//
// A scenario exercises the same path as a real run (compiler, rules, engine,
// audit records) with a fixed clock and run ID, so its audit trail is
// byte-identical between runs and can be compared against a golden file.
//
// # Scenario Format
//
//	name: people
//	description: "Nulls, duplicates and out-of-range ages all fail"
//	now: 2026-03-14T09:30:00Z
//	run_id: run-people
//	contract: |
//	  [contract]
//	  name = "people"
//	  version = "1.0.0"
//	  [[columns]]
//	  name = "id"
//	  validation = [{ rule = "not_null" }]
//	dataset:
//	  columns: [id, age]
//	  rows:
//	    - [1, 5]
//	    - [null, 50]
//	expect:
//	  verdict: fail
//	  failed: 1
//	assertions:
//	  - type: outcome
//	    rule: not_null
//	    column: id
//	    status: fail
//	    details_contains: "null_count=1"
//
// Use contract_file instead of contract to point at a TOML contract on
// disk, relative to the scenario file.
//
// # Assertion Types
//
//   - outcome: a validation record for rule (and column or columns) has
//     the given status and, optionally, details containing a substring
//   - record_count: exactly count records of the given event were written
//   - record_order: the listed rules were recorded in this relative order
//
// # Golden Files
//
// RunWithGolden compares the audit trail against
// testdata/golden/<name>.golden. Rule IDs are content hashes and are left
// out of the snapshot so that reformatting a contract does not churn it.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
