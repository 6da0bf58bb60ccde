package opt

import (
	"weft/internal/ic"
)

// Fuse merges sibling continuations that provably select the same way: IFs
// with equal conditions, RANGE loops with equal bounds and settings, and
// FOREACH loops over the same container with equal settings. The earlier
// continuation's blocks move to the top of the later one's and the earlier
// is deleted. Intervening statements must not touch anything the earlier
// continuation writes, and must not write anything it mentions. Returns the
// number of merges per function name.
func Fuse(p *ic.Program) map[string]int {
	out := make(map[string]int)
	for _, f := range p.Funcs {
		if f == nil || f.Body == nil {
			continue
		}
		if n := fuseBlock(f.Body); n > 0 {
			out[f.Name] = n
		}
	}
	return out
}

func fuseBlock(b *ic.Block) int {
	n := 0
	for i := 0; i < len(b.Stmts); i++ {
		first := b.Stmts[i]
		if first.Kind != ic.StmtCont || !fusible(first.Cont) {
			continue
		}
		for j := i + 1; j < len(b.Stmts); j++ {
			later := b.Stmts[j]
			if later.Kind == ic.StmtCont && fuseInto(first.Cont, later.Cont) {
				b.Stmts = append(b.Stmts[:i], b.Stmts[i+1:]...)
				i--
				n++
				break
			}
			if interferes(first, later) {
				break
			}
		}
	}
	for _, c := range b.Conts() {
		for _, child := range c.Blocks() {
			n += fuseBlock(child)
		}
	}
	return n
}

func fusible(c *ic.Continuation) bool {
	switch c.Kind {
	case ic.ContIf, ic.ContRange, ic.ContForeach:
		return true
	}
	return false
}

// fuseInto moves a's blocks into b if the two are equivalent.
func fuseInto(a, b *ic.Continuation) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ic.ContIf:
		if a.If.Then == nil || b.If.Then == nil || !a.If.Cond.Equal(b.If.Cond) {
			return false
		}
		b.If.Then.Prepend(a.If.Then)
		if a.If.Else != nil {
			if b.If.Else == nil {
				b.If.Else = ic.NewBlock(ic.BlockElse)
			}
			b.If.Else.Prepend(a.If.Else)
		}
	case ic.ContRange:
		ra, rb := &a.Range, &b.Range
		if ra.Body == nil || rb.Body == nil || !ra.Start.Equal(rb.Start) || !ra.End.Equal(rb.End) || !ra.Step.Equal(rb.Step) || ra.Settings != rb.Settings {
			return false
		}
		ic.RenameVars(ra.Body, map[string]ic.Var{ra.LoopVar.Name: rb.LoopVar})
		rb.Body.Prepend(ra.Body)
	case ic.ContForeach:
		fa, fb := &a.Foreach, &b.Foreach
		if fa.Body == nil || fb.Body == nil || !fa.Container.Same(fb.Container) || fa.Settings != fb.Settings {
			return false
		}
		m := map[string]ic.Var{fa.Member.Name: fb.Member}
		if !fa.Counter.IsZero() {
			if fb.Counter.IsZero() {
				fb.Counter = fa.Counter
			} else {
				m[fa.Counter.Name] = fb.Counter
			}
		}
		ic.RenameVars(fa.Body, m)
		fb.Body.Prepend(fa.Body)
	default:
		return false
	}
	for _, v := range a.PassedIn {
		if !containsVar(b.PassedIn, v) {
			b.PassedIn = append(b.PassedIn, v)
		}
	}
	return true
}

// interferes reports whether moving the continuation in first past s could
// change what either of them observes.
func interferes(first, s ic.Statement) bool {
	fw, fm := stmtVars(first)
	sw, sm := stmtVars(s)
	for name := range fw {
		if sm[name] {
			return true
		}
	}
	for name := range sw {
		if fm[name] {
			return true
		}
	}
	return false
}

// stmtVars collects the names a statement writes and every name it
// mentions, including nested blocks.
func stmtVars(s ic.Statement) (writes, mentions map[string]bool) {
	writes, mentions = make(map[string]bool), make(map[string]bool)
	addInstr := func(in *ic.Instr) {
		for _, v := range in.Outputs {
			writes[v.Name] = true
			mentions[v.Name] = true
		}
		for _, a := range in.Inputs {
			if a.IsVar() {
				mentions[a.Var.Name] = true
			}
		}
		switch in.Op {
		case ic.OpIncrRef, ic.OpDecrRef, ic.OpArrayDecrWriters:
			writes[in.Inputs[0].Var.Name] = true
		}
	}
	addCont := func(c *ic.Continuation) {
		for _, v := range c.RequiredVars() {
			mentions[v.Name] = true
		}
		for _, v := range c.ConstructedVars() {
			writes[v.Name] = true
			mentions[v.Name] = true
		}
		if c.Kind == ic.ContAsyncExec {
			for _, v := range c.Async.Results {
				writes[v.Name] = true
			}
		}
	}
	if s.Kind == ic.StmtInstr {
		addInstr(s.Instr)
		return writes, mentions
	}
	addCont(s.Cont)
	for _, b := range s.Cont.Blocks() {
		b.Walk(func(blk *ic.Block) bool {
			for _, st := range blk.Stmts {
				if st.Kind == ic.StmtInstr {
					addInstr(st.Instr)
				} else {
					addCont(st.Cont)
				}
			}
			return true
		})
	}
	return writes, mentions
}

func containsVar(vs []ic.Var, v ic.Var) bool {
	for _, x := range vs {
		if x.Same(v) {
			return true
		}
	}
	return false
}
