package ic

// CopyBlock deep-copies b keeping every Var name.
func CopyBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	out := &Block{Kind: b.Kind, Vars: append([]Var(nil), b.Vars...)}
	out.Stmts = make([]Statement, len(b.Stmts))
	for i, st := range b.Stmts {
		if st.Kind == StmtInstr {
			out.Stmts[i] = InstrStmt(st.Instr.Clone())
		} else {
			out.Stmts[i] = ContStmt(CopyCont(st.Cont))
		}
	}
	return out
}

// CopyCont deep-copies a continuation keeping every Var name.
func CopyCont(c *Continuation) *Continuation {
	out := *c
	out.PassedIn = append([]Var(nil), c.PassedIn...)
	switch c.Kind {
	case ContIf:
		out.If.Then = CopyBlock(c.If.Then)
		out.If.Else = CopyBlock(c.If.Else)
	case ContSwitch:
		out.Switch.Labels = append([]int64(nil), c.Switch.Labels...)
		out.Switch.Cases = make([]*Block, len(c.Switch.Cases))
		for i, b := range c.Switch.Cases {
			out.Switch.Cases[i] = CopyBlock(b)
		}
		out.Switch.Default = CopyBlock(c.Switch.Default)
	case ContForeach:
		out.Foreach.Body = CopyBlock(c.Foreach.Body)
	case ContRange:
		out.Range.Body = CopyBlock(c.Range.Body)
	case ContLoop:
		out.Loop.LoopVars = append([]Var(nil), c.Loop.LoopVars...)
		out.Loop.InitVals = append([]Arg(nil), c.Loop.InitVals...)
		out.Loop.Blocking = append([]bool(nil), c.Loop.Blocking...)
		out.Loop.Body = CopyBlock(c.Loop.Body)
	case ContWait:
		out.Wait.WaitVars = append([]Var(nil), c.Wait.WaitVars...)
		out.Wait.Body = CopyBlock(c.Wait.Body)
	case ContNested:
		out.Nested.Body = CopyBlock(c.Nested.Body)
	case ContAsyncExec:
		out.Async.Args = append([]Arg(nil), c.Async.Args...)
		out.Async.Results = append([]Var(nil), c.Async.Results...)
		out.Async.Body = CopyBlock(c.Async.Body)
	}
	return &out
}

// CloneBlock deep-copies b and gives every Var defined inside it, by
// declaration or as a continuation's constructed Var, a fresh identity.
// Vars defined outside b keep their names.
func CloneBlock(b *Block, fresh FreshFunc) *Block {
	out := CopyBlock(b)
	m := make(map[string]Var)
	define := func(v Var) {
		if v.IsZero() || v.Kind == VarGlobalConst {
			return
		}
		if _, ok := m[v.Name]; !ok {
			m[v.Name] = fresh(v.Name, v.Type, v.Kind)
		}
	}
	out.Walk(func(blk *Block) bool {
		for _, v := range blk.Vars {
			define(v)
		}
		for _, c := range blk.Conts() {
			for _, v := range c.ConstructedVars() {
				define(v)
			}
		}
		return true
	})
	RenameVars(out, m)
	return out
}

// CopyProgram deep-copies p.
func CopyProgram(p *Program) *Program {
	out := &Program{
		Globals: append([]GlobalConst(nil), p.Globals...),
		Structs: append([]StructDecl(nil), p.Structs...),
	}
	for _, f := range p.Funcs {
		nf := *f
		nf.Inputs = append([]Var(nil), f.Inputs...)
		nf.Outputs = append([]Var(nil), f.Outputs...)
		nf.BlockingInputs = append([]Var(nil), f.BlockingInputs...)
		nf.Body = CopyBlock(f.Body)
		out.Funcs = append(out.Funcs, &nf)
	}
	return out
}
