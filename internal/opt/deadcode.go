package opt

import (
	"weft/internal/ic"
)

// EliminateDeadCode removes side-effect-free instructions whose outputs are
// never read, then drops declarations nothing mentions. It repeats until
// nothing more can be removed and returns the number of instructions
// removed. Passed-in lists are not treated as reads; run Fixup afterwards.
func EliminateDeadCode(f *ic.Function) int {
	if f == nil || f.Body == nil {
		return 0
	}
	removed := 0
	for {
		live := liveVars(f)
		n := 0
		f.Body.Walk(func(b *ic.Block) bool {
			kept := b.Stmts[:0]
			for _, st := range b.Stmts {
				if st.Kind == ic.StmtInstr && st.Instr.Pure() && !anyLive(st.Instr.Outputs, live) {
					n++
					continue
				}
				kept = append(kept, st)
			}
			clear(b.Stmts[len(kept):])
			b.Stmts = kept
			return true
		})
		removed += n
		if n == 0 {
			break
		}
	}
	mentioned := mentionedVars(f)
	f.Body.Walk(func(b *ic.Block) bool {
		kept := b.Vars[:0]
		for _, v := range b.Vars {
			if mentioned[v.Name] {
				kept = append(kept, v)
			}
		}
		b.Vars = kept
		return true
	})
	return removed
}

// liveVars collects names that are read somewhere, written by an
// instruction that must stay, or part of the function signature.
func liveVars(f *ic.Function) map[string]bool {
	live := make(map[string]bool)
	for _, v := range f.Inputs {
		live[v.Name] = true
	}
	for _, v := range f.Outputs {
		live[v.Name] = true
	}
	f.Body.Walk(func(b *ic.Block) bool {
		for _, st := range b.Stmts {
			if st.Kind == ic.StmtInstr {
				for _, a := range st.Instr.Inputs {
					if a.IsVar() {
						live[a.Var.Name] = true
					}
				}
				if !st.Instr.Pure() {
					for _, v := range st.Instr.Outputs {
						live[v.Name] = true
					}
				}
				continue
			}
			c := st.Cont
			for _, v := range c.RequiredVars() {
				live[v.Name] = true
			}
			for _, v := range c.ConstructedVars() {
				live[v.Name] = true
			}
		}
		return true
	})
	return live
}

func mentionedVars(f *ic.Function) map[string]bool {
	m := liveVars(f)
	f.Body.Walk(func(b *ic.Block) bool {
		for _, in := range b.Instrs() {
			for _, v := range in.Outputs {
				m[v.Name] = true
			}
		}
		return true
	})
	return m
}

func anyLive(vs []ic.Var, live map[string]bool) bool {
	for _, v := range vs {
		if live[v.Name] {
			return true
		}
	}
	return false
}
