package opt

import (
	"fmt"
	"math/rand/v2"

	"weft/internal/ic"
)

type genOp struct {
	subop string
	in    []ic.Arg
}

// progGen builds random but well-formed single-function programs: every
// future is written exactly once and before any read in program order.
type progGen struct {
	r       *rand.Rand
	n       int
	futures []ic.Var
	values  []ic.Var
	bools   []ic.Var
	asyncs  []genOp
	locals  []genOp
}

var (
	asyncSubops = []string{"plus_int", "minus_int", "mult_int", "max_int", "min_int"}
	localSubops = []string{"plus_int", "minus_int", "mult_int", "max_int", "min_int"}
	cmpSubops   = []string{"lt_int", "gt_int", "eq_int", "lte_int"}
)

func genProgram(seed uint64) *ic.Program {
	g := &progGen{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	intFuture := ic.FutureType(ic.PrimInt)
	a := ic.Var{Name: "a", Type: intFuture}
	b := ic.Var{Name: "b", Type: intFuture}
	o1 := ic.Var{Name: "o1", Type: intFuture}
	o2 := ic.Var{Name: "o2", Type: intFuture}

	prog := &ic.Program{}
	glob := prog.AddGlobal("G", ic.IntArg(7))
	g.futures = []ic.Var{a, b, glob}

	body := ic.NewBlock(ic.BlockMain)
	g.fill(body, 0, 6+g.r.IntN(10))
	body.Append(
		ic.InstrStmt(ic.NewAsyncOp("plus_int", o1, ic.VarArg(g.pick(g.futures)), ic.IntArg(0))),
		ic.InstrStmt(ic.NewStore(o2, g.valueArg())),
	)
	prog.Funcs = []*ic.Function{{
		Name: "main", Inputs: []ic.Var{a, b}, Outputs: []ic.Var{o1, o2}, Async: true, Body: body,
	}}
	return prog
}

func genInputs(seed uint64) map[string]any {
	return map[string]any{"a": int64(seed%7) - 3, "b": int64(seed%5) + 1}
}

func (g *progGen) fresh(prefix string, t ic.Type, k ic.VarKind) ic.Var {
	g.n++
	return ic.Var{Name: fmt.Sprintf("%s%d", prefix, g.n), Type: t, Kind: k}
}

func (g *progGen) pick(vs []ic.Var) ic.Var { return vs[g.r.IntN(len(vs))] }

func (g *progGen) futureArg() ic.Arg {
	if g.r.IntN(5) == 0 {
		return ic.IntArg(g.r.Int64N(5))
	}
	return ic.VarArg(g.pick(g.futures))
}

func (g *progGen) valueArg() ic.Arg {
	if len(g.values) == 0 || g.r.IntN(4) == 0 {
		return ic.IntArg(g.r.Int64N(9) - 4)
	}
	return ic.VarArg(g.pick(g.values))
}

// scoped runs fn and then forgets everything it defined.
func (g *progGen) scoped(fn func()) {
	nf, nv, nb, na, nl := len(g.futures), len(g.values), len(g.bools), len(g.asyncs), len(g.locals)
	fn()
	g.futures, g.values, g.bools = g.futures[:nf], g.values[:nv], g.bools[:nb]
	g.asyncs, g.locals = g.asyncs[:na], g.locals[:nl]
}

func (g *progGen) fill(b *ic.Block, depth, count int) {
	for range count {
		k := g.r.IntN(10)
		switch {
		case k < 3:
			g.asyncOp(b)
		case k < 4:
			g.load(b)
		case k < 5:
			g.localOp(b)
		case k < 6:
			g.store(b)
		case k < 7 && depth < 3:
			g.wait(b, depth)
		case k < 8 && depth < 3:
			g.ifElse(b, depth)
		case k < 9 && depth < 3:
			g.rangeOnce(b, depth)
		default:
			g.load(b)
		}
	}
}

func (g *progGen) asyncOp(b *ic.Block) {
	var op genOp
	if len(g.asyncs) > 0 && g.r.IntN(3) == 0 {
		prev := g.pick2(g.asyncs)
		op = genOp{subop: prev.subop, in: append([]ic.Arg(nil), prev.in...)}
		if info, _ := ic.LookupOp(op.subop); info.Commutative && g.r.IntN(2) == 0 {
			op.in[0], op.in[1] = op.in[1], op.in[0]
		}
	} else {
		op = genOp{subop: asyncSubops[g.r.IntN(len(asyncSubops))], in: []ic.Arg{g.futureArg(), g.futureArg()}}
	}
	out := g.fresh("t", ic.FutureType(ic.PrimInt), ic.VarFuture)
	b.Declare(out)
	b.Append(ic.InstrStmt(ic.NewAsyncOp(op.subop, out, op.in...)))
	g.futures = append(g.futures, out)
	g.asyncs = append(g.asyncs, op)
}

func (g *progGen) pick2(ops []genOp) genOp { return ops[g.r.IntN(len(ops))] }

func (g *progGen) load(b *ic.Block) {
	src := g.pick(g.futures)
	v := g.fresh("v", ic.ValueType(ic.PrimInt), ic.VarValue)
	b.Declare(v)
	b.Append(ic.InstrStmt(ic.NewLoad(v, src)))
	g.values = append(g.values, v)
}

func (g *progGen) localOp(b *ic.Block) {
	if g.r.IntN(4) == 0 {
		c := g.fresh("c", ic.ValueType(ic.PrimBool), ic.VarValue)
		b.Declare(c)
		b.Append(ic.InstrStmt(ic.NewLocalOp(cmpSubops[g.r.IntN(len(cmpSubops))], c, g.valueArg(), g.valueArg())))
		g.bools = append(g.bools, c)
		return
	}
	var op genOp
	switch {
	case len(g.locals) > 0 && g.r.IntN(3) == 0:
		op = g.pick2(g.locals)
	case len(g.values) > 0 && g.r.IntN(5) == 0:
		op = genOp{subop: "copy_int", in: []ic.Arg{ic.VarArg(g.pick(g.values))}}
	default:
		op = genOp{subop: localSubops[g.r.IntN(len(localSubops))], in: []ic.Arg{g.valueArg(), g.valueArg()}}
	}
	out := g.fresh("v", ic.ValueType(ic.PrimInt), ic.VarValue)
	b.Declare(out)
	b.Append(ic.InstrStmt(ic.NewLocalOp(op.subop, out, op.in...)))
	g.values = append(g.values, out)
	g.locals = append(g.locals, op)
}

func (g *progGen) store(b *ic.Block) {
	f := g.fresh("f", ic.FutureType(ic.PrimInt), ic.VarFuture)
	b.Declare(f)
	b.Append(ic.InstrStmt(ic.NewStore(f, g.valueArg())))
	g.futures = append(g.futures, f)
}

func (g *progGen) wait(b *ic.Block, depth int) {
	vars := []ic.Var{g.pick(g.futures)}
	if other := g.pick(g.futures); g.r.IntN(2) == 0 && !other.Same(vars[0]) {
		vars = append(vars, other)
	}
	body := ic.NewBlock(ic.BlockWaitBody)
	g.scoped(func() { g.fill(body, depth+1, 1+g.r.IntN(4)) })
	g.n++
	b.Append(ic.ContStmt(ic.NewWait(fmt.Sprintf("w%d", g.n), vars, ic.WaitOnly, body)))
}

func (g *progGen) ifElse(b *ic.Block, depth int) {
	cond := ic.BoolArg(g.r.IntN(2) == 0)
	if len(g.bools) > 0 && g.r.IntN(4) != 0 {
		cond = ic.VarArg(g.pick(g.bools))
	}
	repeat := 1
	if cond.IsVar() && g.r.IntN(3) == 0 {
		repeat = 2
	}
	for range repeat {
		then := ic.NewBlock(ic.BlockThen)
		g.scoped(func() { g.fill(then, depth+1, 1+g.r.IntN(3)) })
		var els *ic.Block
		if g.r.IntN(2) == 0 {
			els = ic.NewBlock(ic.BlockElse)
			g.scoped(func() { g.fill(els, depth+1, 1+g.r.IntN(3)) })
		}
		b.Append(ic.ContStmt(ic.NewIf(cond, then, els)))
	}
}

// rangeOnce emits a RANGE loop running zero times or once, so futures in
// its body are still written at most once.
func (g *progGen) rangeOnce(b *ic.Block, depth int) {
	lv := g.fresh("i", ic.ValueType(ic.PrimInt), ic.VarValue)
	start := g.r.Int64N(3)
	end := start - g.r.Int64N(2)
	body := ic.NewBlock(ic.BlockLoopBody)
	g.scoped(func() {
		g.values = append(g.values, lv)
		g.fill(body, depth+1, 1+g.r.IntN(3))
	})
	b.Append(ic.ContStmt(ic.NewRange(lv, ic.IntArg(start), ic.IntArg(end), ic.IntArg(1), ic.LoopSettings{}, body)))
}
