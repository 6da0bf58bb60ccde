package opt

import (
	"strconv"

	"weft/internal/ic"
	"weft/internal/settings"
	"weft/internal/trace"
)

// FuncStats counts what the optimizer did to one function.
type FuncStats struct {
	Name          string `json:"name"`
	Iterations    int    `json:"iterations"`
	Converged     bool   `json:"converged"`
	Substitutions int    `json:"substitutions"`
	Conversions   int    `json:"conversions"`
	Inlined       int    `json:"inlined"`
	Fused         int    `json:"fused"`
	Lifted        int    `json:"lifted"`
	Removed       int    `json:"removed"`
}

func (s *FuncStats) add(o FuncStats) {
	s.Iterations += o.Iterations
	s.Converged = o.Converged
	s.Substitutions += o.Substitutions
	s.Conversions += o.Conversions
	s.Inlined += o.Inlined
	s.Fused += o.Fused
	s.Lifted += o.Lifted
	s.Removed += o.Removed
}

// engine runs forward dataflow over one program.
type engine struct {
	prog  *ic.Program
	cfg   settings.Settings
	namer *ic.Namer

	tr      trace.Tracer
	tracing bool
	spanID  uint64

	fn      *ic.Function
	stats   *FuncStats
	changed bool

	// onStep, when set, observes the state after every instruction.
	onStep func(b *ic.Block, st *state)
}

func newEngine(p *ic.Program, cfg settings.Settings, namer *ic.Namer, tr trace.Tracer) *engine {
	if tr == nil {
		tr = trace.Nop
	}
	return &engine{
		prog:    p,
		cfg:     cfg,
		namer:   namer,
		tr:      tr,
		tracing: tr.Enabled() && tr.Level().ShouldEmit(trace.ScopeBlock),
	}
}

func (e *engine) point(name string, detail func() string) {
	if !e.tracing {
		return
	}
	trace.Point(e.tr, trace.ScopeBlock, name, detail(), e.spanID)
}

// runFunction iterates forward dataflow over f until nothing changes or the
// iteration cap is hit. Hitting the cap is not an error.
func (e *engine) runFunction(f *ic.Function, parent uint64) (FuncStats, error) {
	stats := FuncStats{Name: f.Name}
	span := trace.Begin(e.tr, trace.ScopeFunction, f.Name, parent)
	e.fn, e.stats, e.spanID = f, &stats, span.ID()
	defer func() { e.fn, e.stats = nil, nil }()

	for stats.Iterations < e.cfg.MaxIterations {
		stats.Iterations++
		e.changed = false
		if err := e.visitBlock(f.Body, e.seed(f)); err != nil {
			span.WithExtra("error", err.Error()).End("")
			return stats, err
		}
		if e.cfg.WaitLifting {
			if n := liftWaits(f); n > 0 {
				stats.Lifted += n
				e.changed = true
				e.point("lift", func() string { return f.Name + " blocking on " + joinNames(f.BlockingInputs) })
			}
		}
		if !e.changed {
			stats.Converged = true
			break
		}
	}
	span.WithExtra("iterations", strconv.Itoa(stats.Iterations)).
		WithExtra("converged", strconv.FormatBool(stats.Converged)).
		End("")
	return stats, nil
}

// seed builds the entry state of f: blocking inputs closed, global
// constants available.
func (e *engine) seed(f *ic.Function) *state {
	st := newState()
	for _, v := range f.BlockingInputs {
		st.close(v.Name)
	}
	for _, v := range f.Inputs {
		if v.AlwaysClosed() {
			st.close(v.Name)
		}
	}
	for _, g := range e.prog.Globals {
		st.close(g.Var.Name)
		if _, ok := ic.LoadFor(g.Var.Type.Prim); !ok {
			continue
		}
		if key, err := ic.RetrieveCV(g.Var, g.Value).Key(); err == nil {
			st.avail.Put(key, g.Value)
		}
		if key, err := ic.AssignCV(g.Value, g.Var).Key(); err == nil {
			st.avail.Put(key, ic.VarArg(g.Var))
		}
	}
	return st
}

func (e *engine) visitBlock(b *ic.Block, st *state) error {
	c := b.Cursor()
	for c.Valid() {
		stmt := c.Stmt()
		var (
			advance bool
			err     error
		)
		if stmt.Kind == ic.StmtInstr {
			advance, err = e.visitInstr(b, c, st)
		} else {
			advance, err = e.visitCont(c, st)
		}
		if err != nil {
			return err
		}
		if advance {
			c.Next()
		}
	}
	return nil
}

// visitInstr processes the instruction under c. It returns false when the
// instruction was replaced and scanning must resume at the cursor.
func (e *engine) visitInstr(b *ic.Block, c *ic.Cursor, st *state) (bool, error) {
	in := c.Stmt().Instr
	if in == nil {
		return false, ic.Defectf(e.fn.Name, b.Kind.String()+"["+strconv.Itoa(c.Pos())+"]", "nil instruction")
	}
	before := ""
	if e.tracing {
		before = in.String()
	}
	n := in.RenameInputs(st.valueRename, st.refRename)
	n += in.RenameOutputs(st.outputRename)
	if n > 0 {
		e.stats.Substitutions += n
		e.changed = true
		e.point("substitute", func() string { return before + " => " + in.String() })
	}

	if e.convertImmediate(b, c, st) {
		return false, nil
	}
	if err := e.recordFacts(in, st); err != nil {
		return false, err
	}
	e.recordDeps(in, st)
	if e.onStep != nil {
		e.onStep(b, st)
	}
	return true, nil
}

// recordDeps registers that unclosed future outputs wait on the
// instruction's unclosed blocking inputs.
func (e *engine) recordDeps(in *ic.Instr, st *state) {
	blocking := in.BlockingInputs()
	if len(blocking) == 0 {
		return
	}
	var deps []string
	for _, v := range blocking {
		if !st.isClosed(v) {
			deps = append(deps, v.Name)
		}
	}
	for _, out := range in.Outputs {
		if out.Kind == ic.VarFuture && !st.isClosed(out) {
			st.addDeps(out.Name, deps)
		}
	}
}

// visitCont processes the continuation under c. It returns false when the
// continuation was replaced by its selected body.
func (e *engine) visitCont(c *ic.Cursor, st *state) (bool, error) {
	cont := c.Stmt().Cont
	if cont == nil {
		return false, ic.Defectf(e.fn.Name, "statement "+strconv.Itoa(c.Pos()), "nil continuation")
	}
	if n := renameHeader(cont, st); n > 0 {
		e.stats.Substitutions += n
		e.changed = true
		e.point("substitute", cont.Header)
	}

	res := cont.Resolve(st.isClosed)
	if res.Changed {
		e.changed = true
	}
	if res.Inline != nil {
		header := ""
		if e.tracing {
			header = cont.Header()
		}
		c.Inline(res.Inline)
		e.stats.Inlined++
		e.changed = true
		e.point("inline", func() string { return header })
		return false, nil
	}

	for _, child := range cont.Blocks() {
		cst := st.child()
		for _, v := range cont.EntryClosedVars() {
			cst.close(v.Name)
		}
		if err := e.visitBlock(child, cst); err != nil {
			return false, err
		}
	}
	return true, nil
}

// renameHeader substitutes the operands a continuation reads. Async
// executor results are written, not read, so only storage renames apply.
func renameHeader(c *ic.Continuation, st *state) int {
	if c.Kind != ic.ContAsyncExec {
		return c.RenameHeader(st.valueRename)
	}
	n := 0
	for i, a := range c.Async.Args {
		if !a.IsVar() {
			continue
		}
		if r, ok := st.valueRename(a.Var); ok {
			c.Async.Args[i] = r
			n++
		}
	}
	for i, v := range c.Async.Results {
		if r, ok := st.outputRename(v); ok {
			c.Async.Results[i] = r
			n++
		}
	}
	return n
}

func joinNames(vs []ic.Var) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += v.Name
	}
	return out
}
