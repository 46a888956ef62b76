// Package ir provides the shared domain types for pipeaudit.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the contract model, the dataset value model, and the audit/ledger records
// in one foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Rules are a closed set of variants (see Rule); there is no plugin registry
//   - Values are a sealed tagged union (see Value); nil and Null are both null
//   - All JSON tags use snake_case
//   - Periods are UTC calendar dates formatted as YYYY-MM-DD
package ir
