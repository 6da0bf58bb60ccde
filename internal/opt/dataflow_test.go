package opt

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/ic"
	"weft/internal/settings"
)

func TestImmediateConversion(t *testing.T) {
	a, b, o := fut("a"), fut("b"), fut("o")
	w := ic.NewWait("w", vars(a, b), ic.WaitOnly, block(ic.BlockWaitBody, nil,
		ins(ic.NewAsyncOp("plus_int", o, ic.VarArg(a), ic.VarArg(b))),
	))
	fn := &ic.Function{
		Name: "main", Inputs: vars(a, b), Outputs: vars(o),
		Body: block(ic.BlockMain, nil, cont(w)),
	}
	res := optimize(t, single(fn))

	body := w.Wait.Body
	require.Equal(t, []string{"load_int", "load_int", "local_op plus_int", "store_int"}, shape(body))
	op := body.Stmts[2].Instr
	require.Equal(t, ic.VarArg(body.Stmts[0].Instr.Outputs[0]), op.Inputs[0])
	require.Equal(t, ic.VarArg(body.Stmts[1].Instr.Outputs[0]), op.Inputs[1])
	require.Equal(t, ic.VarArg(op.Outputs[0]), body.Stmts[3].Instr.Inputs[0])
	require.Equal(t, "o", body.Stmts[3].Instr.Outputs[0].Name)
	for _, v := range body.Vars {
		require.Equal(t, ic.VarValue, v.Kind)
	}
	require.Equal(t, []string{"a", "b", "o"}, names(w.PassedIn))

	st, _ := res.Func("main")
	require.Equal(t, 1, st.Conversions)
}

func TestImmediateConversionReusesFetchedValue(t *testing.T) {
	a, o, v := fut("a"), fut("o"), val("v")
	w := ic.NewWait("w", vars(a), ic.WaitOnly, block(ic.BlockWaitBody, vars(v),
		ins(ic.NewLoad(v, a)),
		ins(ic.NewAsyncOp("plus_int", o, ic.VarArg(a), ic.IntArg(1))),
	))
	fn := &ic.Function{
		Name: "main", Inputs: vars(a), Outputs: vars(o),
		Body: block(ic.BlockMain, nil, cont(w)),
	}
	optimize(t, single(fn))

	body := w.Wait.Body
	require.Equal(t, []string{"load_int", "local_op plus_int", "store_int"}, shape(body))
	require.Equal(t, ic.VarArg(v), body.Stmts[1].Instr.Inputs[0])
	require.Equal(t, ic.IntArg(1), body.Stmts[1].Instr.Inputs[1])
}

func TestImmediateConversionOfArrayReference(t *testing.T) {
	arr, o := ic.Var{Name: "arr", Type: ic.ArrayType(ic.PrimInt), Kind: ic.VarFuture}, fut("o")
	r := ic.Var{Name: "r", Type: ic.RefType(ic.PrimInt), Kind: ic.VarFuture}
	fn := &ic.Function{
		Name: "main", Inputs: vars(arr), Outputs: vars(o), BlockingInputs: vars(arr),
		Body: block(ic.BlockMain, vars(r),
			ins(ic.NewArrayLookupRefImm(r, arr, ic.IntArg(0))),
		),
	}
	res := optimize(t, single(fn))

	require.Equal(t, []string{"array_lookup_imm", "address_of"}, shape(fn.Body))
	member := fn.Body.Stmts[0].Instr.Outputs[0]
	require.Equal(t, ic.VarAlias, member.Kind)
	require.True(t, fn.Body.Declares(member.Name))
	require.Equal(t, "r", fn.Body.Stmts[1].Instr.Outputs[0].Name)
	require.Equal(t, ic.VarArg(member), fn.Body.Stmts[1].Instr.Inputs[0])
	st, _ := res.Func("main")
	require.Equal(t, 1, st.Conversions)
}

func TestUnclosedInputsAreNotConverted(t *testing.T) {
	a, o := fut("a"), fut("o")
	fn := &ic.Function{
		Name: "main", Inputs: vars(a), Outputs: vars(o),
		Body: block(ic.BlockMain, nil,
			ins(ic.NewAsyncOp("plus_int", o, ic.VarArg(a), ic.IntArg(1))),
		),
	}
	res := optimize(t, single(fn))
	require.Equal(t, []string{"async_op plus_int"}, shape(fn.Body))
	st, _ := res.Func("main")
	require.Zero(t, st.Conversions)
}

func TestGlobalConstantIsPropagated(t *testing.T) {
	p := &ic.Program{}
	g := p.AddGlobal("G", ic.IntArg(7))
	o, v := fut("o"), val("v")
	fn := &ic.Function{
		Name: "main", Outputs: vars(o),
		Body: block(ic.BlockMain, vars(v),
			ins(ic.NewLoad(v, g)),
			ins(ic.NewStore(o, ic.VarArg(v))),
		),
	}
	p.Funcs = append(p.Funcs, fn)
	optimize(t, p)

	require.Equal(t, ic.IntArg(7), fn.Body.Stmts[1].Instr.Inputs[0])
	require.True(t, fn.Body.Declares("G"))
}

func TestArrayContentsFollowReference(t *testing.T) {
	arr := ic.Var{Name: "arr", Type: ic.ArrayType(ic.PrimInt), Kind: ic.VarFuture}
	x, o := fut("x"), fut("o")
	r := ic.Var{Name: "r", Type: ic.RefType(ic.PrimInt), Kind: ic.VarFuture}
	d, v := alias("d"), val("v")
	fn := &ic.Function{
		Name: "main", Inputs: vars(arr, x), Outputs: vars(o),
		Body: block(ic.BlockMain, vars(r, d, v),
			ins(ic.NewArrayInsertImm(arr, ic.IntArg(0), x)),
			ins(ic.NewArrayLookupRefImm(r, arr, ic.IntArg(0))),
			ins(ic.NewLoad(d, r)),
			ins(ic.NewLoad(v, d)),
			ins(ic.NewStore(o, ic.VarArg(v))),
		),
	}
	onePass(t, single(fn), fn)
	require.Equal(t, ic.VarArg(x), fn.Body.Stmts[3].Instr.Inputs[0])
}

func TestCopyOperatorIsSubstituted(t *testing.T) {
	a, o := fut("a"), fut("o")
	v, c := val("v"), val("c")
	fn := &ic.Function{
		Name: "main", Inputs: vars(a), Outputs: vars(o), BlockingInputs: vars(a),
		Body: block(ic.BlockMain, vars(v, c),
			ins(ic.NewLoad(v, a)),
			ins(ic.NewLocalOp("copy_int", c, ic.VarArg(v))),
			ins(ic.NewStore(o, ic.VarArg(c))),
		),
	}
	onePass(t, single(fn), fn)
	require.Equal(t, ic.VarArg(v), fn.Body.Stmts[2].Instr.Inputs[0])
}

func structProgram(fn *ic.Function) *ic.Program {
	p := single(fn)
	p.Structs = []ic.StructDecl{{Name: "pair", Fields: []ic.StructField{{Name: "f", Type: ic.FutureType(ic.PrimInt)}}}}
	return p
}

func TestReferenceEquivalenceRedirectsWrites(t *testing.T) {
	s := ic.Var{Name: "s", Type: ic.StructType("pair"), Kind: ic.VarFuture}
	o := fut("o")
	a1, a2, v := alias("a1"), alias("a2"), val("v")
	fn := &ic.Function{
		Name: "main", Inputs: vars(s), Outputs: vars(o),
		Body: block(ic.BlockMain, vars(a1, a2, v),
			ins(ic.NewStructLookup(a1, s, "f")),
			ins(ic.NewStructLookup(a2, s, "f")),
			ins(ic.NewStore(a2, ic.IntArg(7))),
			ins(ic.NewLoad(v, a1)),
			ins(ic.NewStore(o, ic.VarArg(v))),
		),
	}
	p := structProgram(fn)
	want, err := interpret(p, "main", map[string]any{})
	require.NoError(t, err)

	optimize(t, p)
	require.Equal(t, "a1", fn.Body.Stmts[2].Instr.Outputs[0].Name, "the write through a2 lands on a1")

	got, err := interpret(p, "main", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int64(7), got["o"])
}

func TestReferenceEquivalenceReadsSeeEarlierWrites(t *testing.T) {
	s := ic.Var{Name: "s", Type: ic.StructType("pair"), Kind: ic.VarFuture}
	o := fut("o")
	a1, a2, v := alias("a1"), alias("a2"), val("v")
	fn := &ic.Function{
		Name: "main", Inputs: vars(s), Outputs: vars(o),
		Body: block(ic.BlockMain, vars(a1, a2, v),
			ins(ic.NewStructLookup(a1, s, "f")),
			ins(ic.NewStore(a1, ic.IntArg(3))),
			ins(ic.NewStructLookup(a2, s, "f")),
			ins(ic.NewLoad(v, a2)),
			ins(ic.NewStore(o, ic.VarArg(v))),
		),
	}
	p := structProgram(fn)
	optimize(t, p)

	got, err := interpret(p, "main", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, int64(3), got["o"])
	require.Equal(t, ic.IntArg(3), fn.Body.Stmts[4].Instr.Inputs[0])
}

func TestValueEquivalenceLeavesWritesAlone(t *testing.T) {
	a, o1, o2 := fut("a"), fut("o1"), fut("o2")
	t1, t2 := fut("t1"), fut("t2")
	fn := &ic.Function{
		Name: "main", Inputs: vars(a), Outputs: vars(o1, o2),
		Body: block(ic.BlockMain, vars(t1, t2),
			ins(ic.NewAsyncOp("plus_int", t1, ic.VarArg(a), ic.IntArg(1))),
			ins(ic.NewAsyncOp("plus_int", t2, ic.VarArg(a), ic.IntArg(1))),
			ins(ic.NewAsyncOp("copy_int", o1, ic.VarArg(t1))),
			ins(ic.NewAsyncOp("copy_int", o2, ic.VarArg(t2))),
		),
	}
	onePass(t, single(fn), fn)

	require.Equal(t, "t2", fn.Body.Stmts[1].Instr.Outputs[0].Name)
	require.Equal(t, ic.VarArg(t1), fn.Body.Stmts[3].Instr.Inputs[0])
}

func TestMergeTieBreak(t *testing.T) {
	x, y := fut("x"), fut("y")
	tests := []struct {
		name       string
		prev, curr ic.Arg
		closed     []string
		equiv      ic.EquivKind
		loser      ic.Var
		winner     ic.Arg
		canonical  ic.Arg
	}{
		{"constant earlier", ic.IntArg(4), ic.VarArg(y), nil, ic.EquivValue, y, ic.IntArg(4), ic.IntArg(4)},
		{"constant later", ic.VarArg(x), ic.IntArg(4), nil, ic.EquivValue, x, ic.IntArg(4), ic.IntArg(4)},
		{"neither closed", ic.VarArg(x), ic.VarArg(y), nil, ic.EquivValue, y, ic.VarArg(x), ic.VarArg(x)},
		{"later closed", ic.VarArg(x), ic.VarArg(y), []string{"y"}, ic.EquivValue, x, ic.VarArg(y), ic.VarArg(y)},
		{"both closed", ic.VarArg(x), ic.VarArg(y), []string{"x", "y"}, ic.EquivValue, y, ic.VarArg(x), ic.VarArg(x)},
		{"reference keeps earlier", ic.VarArg(x), ic.VarArg(y), []string{"y"}, ic.EquivReference, y, ic.VarArg(x), ic.VarArg(x)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := single(&ic.Function{Name: "main", Body: block(ic.BlockMain, nil)})
			e := newEngine(p, settings.Default(), ic.NewNamer(p), nil)
			st := newState()
			for _, n := range tt.closed {
				st.close(n)
			}
			st.avail.Put("k", tt.prev)
			e.merge(st, "k", tt.prev, tt.curr, tt.equiv)

			require.Equal(t, tt.winner, st.resolve(ic.VarArg(tt.loser), true))
			got, _ := st.avail.Get("k")
			require.Equal(t, tt.canonical, got)
			if tt.equiv == ic.EquivReference {
				require.Equal(t, tt.winner, st.resolve(ic.VarArg(tt.loser), false))
			}
		})
	}
}

func TestClosednessIsMonotonic(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		p := genProgram(seed)
		f := p.Funcs[0]
		e := newEngine(p, settings.Default(), ic.NewNamer(p), nil)
		e.fn, e.stats = f, &FuncStats{Name: f.Name}

		last := map[*ic.Block][]string{}
		e.onStep = func(b *ic.Block, st *state) {
			now := st.closedNames()
			for _, name := range last[b] {
				require.True(t, slices.Contains(now, name), "seed %d: %s reopened", seed, name)
			}
			last[b] = now
		}
		require.NoError(t, e.visitBlock(f.Body, e.seed(f)), "seed %d", seed)
	}
}

func TestChildBlocksDoNotLeakFacts(t *testing.T) {
	a, o1, o2 := fut("a"), fut("o1"), fut("o2")
	v1, v2 := val("v1"), val("v2")
	c := boolFut("c")
	fn := &ic.Function{
		Name: "main", Inputs: vars(a, c), Outputs: vars(o1, o2),
		Body: block(ic.BlockMain, vars(v2),
			cont(ic.NewWait("w", vars(c), ic.WaitOnly, block(ic.BlockWaitBody, vars(v1),
				ins(ic.NewLoad(v1, a)),
				ins(ic.NewStore(o1, ic.VarArg(v1))),
			))),
			ins(ic.NewLoad(v2, a)),
			ins(ic.NewStore(o2, ic.VarArg(v2))),
		),
	}
	onePass(t, single(fn), fn)
	require.Equal(t, ic.VarArg(v2), fn.Body.Stmts[2].Instr.Inputs[0])
}
