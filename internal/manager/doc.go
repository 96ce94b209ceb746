// Package manager owns the contract every data-source plugin implements.
//
// Ownership boundary:
// - Manager interface and the shared Base implementation
// - capability tags advertised by plugins
// - populate/drop bookkeeping in the action log
// - generation of a plugin's command group
package manager
