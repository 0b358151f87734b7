// Package model provides the domain types of the sales machine.
//
// This package contains type definitions and pure functions only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Every status, stage, temperature or role column has a closed Go type
//     with IsValid and a Parse function. Rows read from storage are parsed at
//     the boundary so an unknown value never reaches business code.
//   - Money is Cents (int64). Floats never reach persisted monetary values.
//   - Scores are integers in 0..100.
//   - JSON payload columns use the versioned Payload envelope.
//   - All JSON tags use snake_case.
package model
