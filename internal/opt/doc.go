// Package opt rewrites IC programs to remove synchronization and repeated
// computation.
//
// Optimize drives the passes. Forward dataflow walks each function in
// program order tracking which futures are closed and which values are
// already available somewhere, substituting operands, converting
// instructions to local-value form and inlining continuations whose choice
// is decided. Fusion merges sibling continuations with equal headers. Fixup
// runs last and recomputes the passed-in lists the other passes leave stale.
package opt
