// Package cli builds the bio2bel command tree.
//
// Each registered plugin gets an alias sub-command that forwards its raw
// arguments to the plugin dispatcher; the remaining sub-commands run
// aggregate operations across the whole registry.
package cli
