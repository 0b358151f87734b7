// Package store provides SQLite-backed storage for the sales machine.
//
// The schema follows the company-rooted relationship graph:
//   - Companies with contacts, decision makers and activities
//   - Lead lifecycle: sources, quarantine, pool, qualified
//   - ICP analyses: current result per subject plus immutable history,
//     per-criterion scores and evidence
//   - Pipeline: stages, deals, opportunities, versioned quotes and proposals
//   - Signals, company monitoring and collaborative canvases
//
// # Invariants
//
// Lead status changes only through TransitionLead. Each change is checked
// against the forward-only lifecycle and appended to lead_transitions under a
// monotonically increasing seq; VerifyLeadStatuses replays that log against
// the current rows.
//
// History, version and transition tables are append-only: triggers abort any
// UPDATE or DELETE. A quote is frozen once sent (only its status may move to
// accepted or rejected) and a proposal is frozen once signed. Trigger aborts
// surface as ErrImmutable.
//
// Enum columns are validated again when rows are scanned, so a row with an
// unknown status never leaves this package.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
