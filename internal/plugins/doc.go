// Package plugins discovers data-source plugins and dispatches commands to
// them.
//
// Ownership boundary:
// - the Catalog of compiled-in plugin factories
// - discovery into an immutable Registry
// - per-plugin command dispatch and aggregate populate/summarize/export runs
//
// There is no package-level registry: callers build one with Discover and
// pass it, together with an Env, wherever it is needed.
package plugins
