// Package catalog loads the business catalog of the sales machine from CUE.
//
// The catalog holds the data the application treats as configuration rather
// than rows: the five cost categories and their predefined line items, the
// ordered deal pipeline stages, and the temperature bands used to bucket ICP
// scores.
//
// An embedded default.cue is always available through Default. Operators can
// override it with a directory of .cue files (LoadDir). Compilation uses the
// CUE Go API directly and reports problems as *CompileError with the CUE
// source position when one is known.
package catalog
