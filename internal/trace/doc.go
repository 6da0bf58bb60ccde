// Package trace records what the optimizer does: pass and function spans,
// plus point events for individual rewrites.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tr)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "fusion", parent)
//	defer span.End("")
//
// Levels filter by scope. phase keeps driver and pass spans, detail adds one
// span per function, debug adds a point event per rewrite.
package trace
