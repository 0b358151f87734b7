// Package pipeline drives captured leads through validation, scoring,
// qualification and promotion.
//
// Single-Writer Event Loop:
// Every step of a lead's lifecycle is an Event on a FIFO queue. Run (or
// Drain) dequeues events one at a time in a single goroutine, performs the
// store writes for that step and enqueues the follow-on step. External
// collaborators (validator, ICP scorer, deal health scorer, proposal
// generator) are called from the loop and their outputs are stored as
// versioned payloads.
//
// Flow Tokens:
// Each submitted lead gets a flow token. All steps and lead transitions of
// that lead carry the token, and each flow has a step quota so a
// misbehaving collaborator cannot keep a lead cycling forever.
//
// Error Handling:
// A failing step is logged with its event context and recorded on the
// flow's Result; the loop continues with the next event. The lead keeps
// the last status it reached, so resubmitting it resumes from there.
//
// Batch work (Recalculate) calls the scorer concurrently but writes the
// results sequentially in lead order.
package pipeline
