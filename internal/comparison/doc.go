// Package comparison classifies keyed records between two versions of a
// table as added, deleted or modified.
//
// Cell equality is type-aware: a value column is compared numerically when
// every cell on both sides of the join parses as a number, otherwise as
// exact strings. The decision is taken once per column, so "269" and
// "269.0" are equal in a numeric column but differ in a text column.
//
// Diff is a pure function. It never reads files, applies formatting rules or
// logs; the report it returns is byte-identical for reordered input rows.
package comparison
