// Package store owns the SQLite handle behind a module connection string.
//
// Ownership boundary:
// - connection string parsing and opening
// - embedded framework migrations (the action log)
// - plugin table create/drop/count primitives
package store
