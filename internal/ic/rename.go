package ic

// RenameVars replaces every occurrence of the mapped Vars in b and its
// descendants: declarations, instruction operands in any position,
// continuation headers, constructed and passed-in Vars.
func RenameVars(b *Block, m map[string]Var) {
	if b == nil || len(m) == 0 {
		return
	}
	swap := func(v Var) Var {
		if r, ok := m[v.Name]; ok {
			return r
		}
		return v
	}
	swapAll := func(vs []Var) {
		for i := range vs {
			vs[i] = swap(vs[i])
		}
	}
	asArg := func(v Var) (Arg, bool) {
		r, ok := m[v.Name]
		return VarArg(r), ok
	}
	b.Walk(func(blk *Block) bool {
		swapAll(blk.Vars)
		for _, st := range blk.Stmts {
			if st.Kind == StmtInstr {
				st.Instr.RenameInputs(asArg, asArg)
				st.Instr.RenameOutputs(func(v Var) (Var, bool) {
					r, ok := m[v.Name]
					return r, ok
				})
				continue
			}
			c := st.Cont
			c.RenameHeader(asArg)
			swapAll(c.PassedIn)
			switch c.Kind {
			case ContForeach:
				c.Foreach.Member = swap(c.Foreach.Member)
				if !c.Foreach.Counter.IsZero() {
					c.Foreach.Counter = swap(c.Foreach.Counter)
				}
			case ContRange:
				c.Range.LoopVar = swap(c.Range.LoopVar)
			case ContLoop:
				swapAll(c.Loop.LoopVars)
			}
		}
		return true
	})
}
