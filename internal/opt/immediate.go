package opt

import (
	"weft/internal/ic"
)

// convertImmediate rewrites the instruction under c to operate on local
// values when its inputs are closed. The replacement fetches inputs,
// computes locally and stores requested outputs back, and takes the
// original's place so the scan resumes at the first fetch.
func (e *engine) convertImmediate(b *ic.Block, c *ic.Cursor, st *state) bool {
	in := c.Stmt().Instr
	req := in.ImmediateRequest(st.isClosed)
	if req == nil {
		return false
	}

	var stmts []ic.Statement
	inVals := make([]ic.Arg, len(req.In))
	for i, v := range req.In {
		if known, ok := st.lookup(ic.RetrieveCV(v, ic.Arg{})); ok && isLocal(known) {
			inVals[i] = known
			continue
		}
		val := e.namer.FreshVar("__v_"+v.Name, v.Type.Local(), ic.VarValue)
		b.Declare(val)
		stmts = append(stmts, ic.InstrStmt(ic.NewLoad(val, v)))
		inVals[i] = ic.VarArg(val)
	}
	outVals := make([]ic.Var, len(req.Out))
	for i, v := range req.Out {
		outVals[i] = e.namer.FreshVar("__v_"+v.Name, v.Type.Local(), ic.VarValue)
		b.Declare(outVals[i])
	}

	change := in.MakeImmediate(req, outVals, inVals, e.namer.FreshVar)
	stmts = append(stmts, ic.InstrStmt(change.Instr))
	if !change.NewOut.IsZero() {
		b.Declare(change.NewOut)
		stmts = append(stmts, ic.InstrStmt(ic.NewAddressOf(change.OldOut, change.NewOut)))
	}
	for i, v := range req.Out {
		stmts = append(stmts, ic.InstrStmt(ic.NewStore(v, ic.VarArg(outVals[i]))))
	}

	old := ""
	if e.tracing {
		old = in.String()
	}
	c.Replace(stmts...)
	e.stats.Conversions++
	e.changed = true
	e.point("immediate", func() string { return old + " => " + change.Instr.String() })
	return true
}

// isLocal reports whether a can be used where a local value is required.
func isLocal(a ic.Arg) bool {
	return a.IsConst() || (a.IsVar() && a.Var.Kind == ic.VarValue)
}
