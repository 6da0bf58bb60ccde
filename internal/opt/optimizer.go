package opt

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"weft/internal/ic"
	"weft/internal/observ"
	"weft/internal/settings"
	"weft/internal/trace"
)

// Pass names as they appear in traces, timings and pass hooks.
const (
	PassDataflow = "forward-dataflow"
	PassFusion   = "fusion"
	PassDeadCode = "dead-code"
	PassFixup    = "fixup"
)

// Result summarizes an Optimize run.
type Result struct {
	Funcs           []FuncStats   `json:"funcs"`
	OuterIterations int           `json:"outer_iterations"`
	Timings         observ.Report `json:"timings"`
}

// Func returns the statistics for the named function.
func (r *Result) Func(name string) (FuncStats, bool) {
	for _, s := range r.Funcs {
		if s.Name == name {
			return s, true
		}
	}
	return FuncStats{}, false
}

// Option customizes Optimize.
type Option func(*options)

type options struct {
	afterPass func(pass string, outer int, p *ic.Program)
}

// WithPassHook calls fn after every pass with the pass name and the outer
// iteration it ran in (0 for fixup). fn must not modify p.
func WithPassHook(fn func(pass string, outer int, p *ic.Program)) Option {
	return func(o *options) { o.afterPass = fn }
}

// Optimize rewrites p in place. Passes repeat until an outer iteration
// changes nothing or the cap is reached; Fixup and validation run last.
// Errors are compiler-internal defects; the tree must not be used after
// one.
func Optimize(ctx context.Context, p *ic.Program, cfg settings.Settings, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if p == nil {
		return &Result{}, nil
	}

	tr := trace.FromContext(ctx)
	root := trace.Begin(tr, trace.ScopeDriver, "optimize", 0)
	timer := observ.NewTimer()
	res := &Result{}
	stats := make(map[string]*FuncStats, len(p.Funcs))
	for _, f := range p.Funcs {
		if f != nil {
			stats[f.Name] = &FuncStats{Name: f.Name}
		}
	}
	namer := ic.NewNamer(p)

	fail := func(err error) (*Result, error) {
		root.WithExtra("error", err.Error()).End("")
		res.Timings = timer.Report()
		return res, err
	}
	after := func(pass string, outer int) {
		if o.afterPass != nil {
			o.afterPass(pass, outer, p)
		}
	}

	if err := ic.CheckStructure(p); err != nil {
		return fail(err)
	}

	for outer := 1; outer <= cfg.MaxOuterIterations; outer++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		res.OuterIterations = outer
		changed := false

		if cfg.ForwardDataflow {
			idx := timer.Begin(PassDataflow)
			span := trace.Begin(tr, trace.ScopePass, PassDataflow, root.ID())
			eng := newEngine(p, cfg, namer, tr)
			var errs []error
			for _, f := range p.Funcs {
				if f == nil || f.Body == nil {
					continue
				}
				fs, err := eng.runFunction(f, span.ID())
				if err != nil {
					errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
				}
				if fs.Iterations > 1 || !fs.Converged {
					changed = true
				}
				stats[f.Name].add(fs)
			}
			span.WithExtra("outer", strconv.Itoa(outer)).End("")
			timer.End(idx, "")
			if err := errors.Join(errs...); err != nil {
				return fail(err)
			}
			after(PassDataflow, outer)
		}

		if cfg.ContinuationFusion {
			idx := timer.Begin(PassFusion)
			span := trace.Begin(tr, trace.ScopePass, PassFusion, root.ID())
			total := 0
			for name, n := range Fuse(p) {
				stats[name].Fused += n
				total += n
			}
			if total > 0 {
				changed = true
			}
			span.WithExtra("fused", strconv.Itoa(total)).End("")
			timer.End(idx, "")
			after(PassFusion, outer)
		}

		if cfg.InlineDCE {
			idx := timer.Begin(PassDeadCode)
			span := trace.Begin(tr, trace.ScopePass, PassDeadCode, root.ID())
			total := 0
			for _, f := range p.Funcs {
				if f == nil {
					continue
				}
				n := EliminateDeadCode(f)
				stats[f.Name].Removed += n
				total += n
			}
			if total > 0 {
				changed = true
			}
			span.WithExtra("removed", strconv.Itoa(total)).End("")
			timer.End(idx, "")
			after(PassDeadCode, outer)
		}

		if !changed {
			break
		}
	}

	idx := timer.Begin(PassFixup)
	span := trace.Begin(tr, trace.ScopePass, PassFixup, root.ID())
	err := Fixup(p)
	if err == nil {
		err = ic.Validate(p)
	}
	span.End("")
	timer.End(idx, fmt.Sprintf("%d functions", len(p.Funcs)))
	if err != nil {
		return fail(err)
	}
	after(PassFixup, 0)

	for _, f := range p.Funcs {
		if f != nil {
			res.Funcs = append(res.Funcs, *stats[f.Name])
		}
	}
	res.Timings = timer.Report()
	root.WithExtra("outer", strconv.Itoa(res.OuterIterations)).End("")
	return res, nil
}
