// Package query is a small filter language for the store's list operations.
//
// A Select names a table, its columns, an optional Predicate and the sort
// order. Compile turns it into parameterized SQLite. Values are never
// interpolated, identifiers are checked against a strict pattern, and every
// compiled statement ends with a deterministic ORDER BY whose last key is the
// table's primary key under COLLATE BINARY, so equal rows always come back in
// the same order.
//
// The predicate set is sealed: Equals, AtLeast, In and And. Floats are
// rejected as values; scores and money are integers throughout the schema.
package query
