// Package costs implements the proposal cost selector.
//
// A Selector owns the list of selected cost items for one proposal. Operators
// toggle predefined catalog items, add custom items, edit costs and remove
// entries; the selector keeps per-category and grand totals in integer cents.
// Every new list is handed to the OnChange callback as a copy, and additions
// are passed to an optional Persister before a success notification is sent.
//
// A Selector is owned by a single caller and is not safe for concurrent use.
package costs
