// Package store provides the SQLite-backed ledger store.
//
// The ledger table is append-only at the storage level:
//   - UNIQUE(period_id): a period is sealed at most once
//   - seq is assigned densely; an insert must carry MAX(seq)+1
//   - UPDATE and DELETE triggers abort, so a sealed entry cannot be
//     rewritten through SQL without dropping the triggers first
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: a sealed entry survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Store satisfies ledger.Store and is selected with ledger_backend: sqlite.
package store
