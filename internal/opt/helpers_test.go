package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/ic"
	"weft/internal/settings"
)

func fut(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.FutureType(ic.PrimInt), Kind: ic.VarFuture}
}

func boolFut(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.FutureType(ic.PrimBool), Kind: ic.VarFuture}
}

func val(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.ValueType(ic.PrimInt), Kind: ic.VarValue}
}

func boolVal(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.ValueType(ic.PrimBool), Kind: ic.VarValue}
}

func alias(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.FutureType(ic.PrimInt), Kind: ic.VarAlias}
}

func block(kind ic.BlockKind, decls []ic.Var, stmts ...ic.Statement) *ic.Block {
	b := ic.NewBlock(kind, stmts...)
	b.Declare(decls...)
	return b
}

func ins(i *ic.Instr) ic.Statement { return ic.InstrStmt(i) }

func cont(c *ic.Continuation) ic.Statement { return ic.ContStmt(c) }

func vars(vs ...ic.Var) []ic.Var { return vs }

func single(f *ic.Function) *ic.Program {
	return &ic.Program{Funcs: []*ic.Function{f}}
}

// shape lists the top-level statements of b as opcode or continuation kind.
func shape(b *ic.Block) []string {
	out := make([]string, len(b.Stmts))
	for i, st := range b.Stmts {
		if st.Kind == ic.StmtInstr {
			out[i] = st.Instr.Op.String()
			if st.Instr.Op == ic.OpLocalOp || st.Instr.Op == ic.OpAsyncOp {
				out[i] += " " + st.Instr.Subop
			}
		} else {
			out[i] = st.Cont.Kind.String()
		}
	}
	return out
}

func optimize(t *testing.T, p *ic.Program, mutate ...func(*settings.Settings)) *Result {
	t.Helper()
	cfg := settings.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	res, err := Optimize(context.Background(), p, cfg)
	require.NoError(t, err)
	return res
}

func withDCE(s *settings.Settings) { s.InlineDCE = true }

// onePass runs a single forward dataflow pass over f.
func onePass(t *testing.T, p *ic.Program, f *ic.Function) (*engine, *FuncStats) {
	t.Helper()
	e := newEngine(p, settings.Default(), ic.NewNamer(p), nil)
	stats := &FuncStats{Name: f.Name}
	e.fn, e.stats = f, stats
	require.NoError(t, e.visitBlock(f.Body, e.seed(f)))
	return e, stats
}
