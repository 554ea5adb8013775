// Package module owns dynamically loaded code modules and the references that keep
// them loaded.
//
// A Handle wraps one opened Library. Every holder of code obtained from the module
// (the plugin that opened it, and each operator built from it) holds its own Lease.
// The handle releases its Library only when the last lease is released, and refuses
// symbol lookups from then on, so code resolved from a module is never invoked after
// the module was given up.
//
// Go's runtime never unmaps an object opened with plugin.Open. The handle enforces
// the same contract a real unmap would need, which also covers loaders that can
// release their resources (script modules, test fakes) through io.Closer.
package module
