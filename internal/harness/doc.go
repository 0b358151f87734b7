// Package harness runs YAML scenarios against a fresh in-memory store.
//
// # Scenario Format
//
//	name: cost_selector_example
//	description: "Selecting items and a custom cost"
//	collaborators:
//	  scores: { Acme: 80 }
//	  rejections: { Shellco: "cnpj inactive" }
//	steps:
//	  - action: toggle
//	    item: imp_testes
//	  - action: set_cost
//	    item: imp_testes
//	    cost: "5000"
//	  - action: add_custom
//	    category: support
//	    name: Viagem
//	  - action: set_cost
//	    item: "@last"
//	    cost: "1200"
//	assertions:
//	  - type: total
//	    amount: "6200"
//
// Cost steps (toggle, add_custom, set_cost, remove) drive a costs.Selector.
// Lead steps (capture, process, recalculate) drive the store and pipeline
// with scripted collaborators. Deal steps (deal_create, deal_move,
// deal_close, deal_health) act on the deals of promoted leads. Leads and
// deals are named by the alias given with "as"; "@last" names the last added
// cost item.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: one row of a table matches the expected columns; "@alias"
//     values in where or expect stand for the aliased lead or deal ID
//   - lead_status: a lead alias has the given status
//   - total: a category subtotal (or the grand total) equals an amount
//   - notifications: the exact list of notifications sent
//
// # Deterministic Testing
//
// Every run uses a stepping clock starting at testutil.Epoch, sequential
// row IDs and sequential flow tokens, so snapshots are byte-stable and can
// be compared with golden files.
package harness
