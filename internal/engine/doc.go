// Package engine implements the validation orchestrator.
//
// A run evaluates every rule instance of a contract against one dataset
// and writes the audit trail for it:
//
//  1. run_start is recorded.
//  2. Rule instances are evaluated on a bounded worker pool.
//  3. Outcomes are recorded strictly in declaration order (file rules,
//     then columns in contract order, then compound rules), each as soon
//     as it and every earlier outcome are ready.
//  4. The dataset is routed to destination (pass) or quarantine (fail).
//  5. run_complete is recorded with the verdict.
//
// Evaluation order may vary with scheduling; emission order never does,
// so the same contract and dataset always produce the same records.
//
// An audit append failure stops emission immediately and the run reports
// ir.VerdictError: a run whose trail is incomplete never reports pass.
// Routing is best-effort and never changes the verdict.
package engine
