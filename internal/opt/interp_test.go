package opt

import (
	"fmt"
	"slices"

	"weft/internal/ic"
)

// cell is one piece of storage. Aliases share cells; refs point at them.
type cell struct {
	val    any
	set    bool
	elems  map[int64]*cell
	fields map[string]*cell
	ref    *cell
}

func (c *cell) elem(ix int64) *cell {
	if c.elems == nil {
		c.elems = make(map[int64]*cell)
	}
	e, ok := c.elems[ix]
	if !ok {
		e = &cell{}
		c.elems[ix] = e
	}
	return e
}

func (c *cell) field(name string) *cell {
	if c.fields == nil {
		c.fields = make(map[string]*cell)
	}
	f, ok := c.fields[name]
	if !ok {
		f = &cell{}
		c.fields[name] = f
	}
	return f
}

// interp executes IC sequentially. Every future is written before it is
// read in the programs the tests build, so program order is a valid
// schedule.
type interp struct {
	prog  *ic.Program
	cells map[string]*cell
	steps int
}

func newInterp(p *ic.Program) *interp {
	it := &interp{prog: p, cells: make(map[string]*cell)}
	for _, g := range p.Globals {
		v, _ := literal(g.Value)
		it.cells[g.Var.Name] = &cell{val: v, set: true}
	}
	return it
}

// interpret runs fn of p on inputs and returns its outputs.
func interpret(p *ic.Program, fn string, inputs map[string]any) (map[string]any, error) {
	it := newInterp(p)
	f := p.Func(fn)
	if f == nil {
		return nil, fmt.Errorf("no function %s", fn)
	}
	for _, v := range f.Inputs {
		it.cells[v.Name] = &cell{val: inputs[v.Name], set: true}
	}
	if err := it.block(f.Body); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(f.Outputs))
	for _, v := range f.Outputs {
		c := it.cell(v)
		if !c.set {
			return nil, fmt.Errorf("output %s never written", v.Name)
		}
		out[v.Name] = c.val
	}
	return out, nil
}

func (it *interp) cell(v ic.Var) *cell {
	c, ok := it.cells[v.Name]
	if !ok {
		c = &cell{}
		it.cells[v.Name] = c
	}
	return c
}

func (it *interp) write(v ic.Var, val any) {
	c := it.cell(v)
	c.val, c.set = val, true
}

func literal(a ic.Arg) (any, bool) {
	switch a.Kind {
	case ic.ArgInt:
		return a.Int, true
	case ic.ArgFloat:
		return a.Float, true
	case ic.ArgBool:
		return a.Bool, true
	case ic.ArgString:
		return a.Str, true
	}
	return nil, false
}

func (it *interp) arg(a ic.Arg) (any, error) {
	if v, ok := literal(a); ok {
		return v, nil
	}
	if !a.IsVar() {
		return nil, fmt.Errorf("missing operand")
	}
	c := it.cell(a.Var)
	if !c.set {
		return nil, fmt.Errorf("read of unset %s", a.Var.Name)
	}
	return c.val, nil
}

func (it *interp) intArg(a ic.Arg) (int64, error) {
	v, err := it.arg(a)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s is %T, not int", a, v)
	}
	return n, nil
}

func (it *interp) block(b *ic.Block) error {
	if b == nil {
		return nil
	}
	for _, st := range b.Stmts {
		var err error
		if st.Kind == ic.StmtInstr {
			err = it.instr(st.Instr)
		} else {
			err = it.cont(st.Cont)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (it *interp) instr(in *ic.Instr) error {
	it.steps++
	if it.steps > 100000 {
		return fmt.Errorf("step limit exceeded")
	}
	switch {
	case in.Op == ic.OpComment, in.Op == ic.OpIncrRef, in.Op == ic.OpDecrRef, in.Op == ic.OpArrayDecrWriters:
		return nil
	case in.Op == ic.OpLoadRef:
		r := it.cell(in.Inputs[0].Var)
		if r.ref == nil {
			return fmt.Errorf("%s: nil reference", in)
		}
		it.cells[in.Outputs[0].Name] = r.ref
	case in.Op.IsLoad(), in.Op.IsStore():
		v, err := it.arg(in.Inputs[0])
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		it.write(in.Outputs[0], v)
	case in.Op == ic.OpAddressOf:
		r := it.cell(in.Outputs[0])
		r.ref, r.set = it.cell(in.Inputs[0].Var), true
	case in.Op == ic.OpCopyRef:
		it.cells[in.Outputs[0].Name] = it.cell(in.Inputs[0].Var)
	case in.Op == ic.OpLocalOp, in.Op == ic.OpAsyncOp:
		args := make([]any, len(in.Inputs))
		for i, a := range in.Inputs {
			v, err := it.arg(a)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			args[i] = v
		}
		res, err := evalOp(in.Subop, args)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		if len(in.Outputs) > 0 {
			it.write(in.Outputs[0], res)
		}
	case in.Op == ic.OpStructInsert:
		s := it.cell(in.Outputs[0])
		s.field(in.Subop)
		s.fields[in.Subop] = it.cell(in.Inputs[0].Var)
	case in.Op == ic.OpStructLookup:
		it.cells[in.Outputs[0].Name] = it.cell(in.Inputs[0].Var).field(in.Subop)
	case in.Op == ic.OpArrayInsertImm, in.Op == ic.OpArrayInsertFuture:
		ix, err := it.intArg(in.Inputs[0])
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		arr := it.cell(in.Outputs[0])
		arr.elem(ix)
		arr.elems[ix] = it.cell(in.Inputs[1].Var)
	case in.Op == ic.OpArrayLookupImm:
		ix, err := it.intArg(in.Inputs[1])
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		it.cells[in.Outputs[0].Name] = it.cell(in.Inputs[0].Var).elem(ix)
	case in.Op == ic.OpArrayLookupRefImm, in.Op == ic.OpArrayLookupFuture:
		ix, err := it.intArg(in.Inputs[1])
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		r := it.cell(in.Outputs[0])
		r.ref, r.set = it.cell(in.Inputs[0].Var).elem(ix), true
	default:
		return fmt.Errorf("%s: unsupported", in)
	}
	return nil
}

func (it *interp) cont(c *ic.Continuation) error {
	switch c.Kind {
	case ic.ContIf:
		v, err := it.arg(c.If.Cond)
		if err != nil {
			return err
		}
		if truthy(v) {
			return it.block(c.If.Then)
		}
		return it.block(c.If.Else)
	case ic.ContSwitch:
		sel, err := it.intArg(c.Switch.Selector)
		if err != nil {
			return err
		}
		for i, l := range c.Switch.Labels {
			if l == sel {
				return it.block(c.Switch.Cases[i])
			}
		}
		return it.block(c.Switch.Default)
	case ic.ContWait:
		for _, v := range c.Wait.WaitVars {
			if !v.AlwaysClosed() && !it.cell(v).set {
				return fmt.Errorf("wait on unset %s", v.Name)
			}
		}
		return it.block(c.Wait.Body)
	case ic.ContNested:
		return it.block(c.Nested.Body)
	case ic.ContRange:
		start, err := it.intArg(c.Range.Start)
		if err != nil {
			return err
		}
		end, err := it.intArg(c.Range.End)
		if err != nil {
			return err
		}
		step, err := it.intArg(c.Range.Step)
		if err != nil || step <= 0 {
			return fmt.Errorf("bad range step")
		}
		for i := start; i <= end; i += step {
			it.write(c.Range.LoopVar, i)
			if err := it.block(c.Range.Body); err != nil {
				return err
			}
		}
		return nil
	case ic.ContForeach:
		arr := it.cell(c.Foreach.Container)
		keys := make([]int64, 0, len(arr.elems))
		for k := range arr.elems {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			it.cells[c.Foreach.Member.Name] = arr.elems[k]
			if !c.Foreach.Counter.IsZero() {
				it.write(c.Foreach.Counter, k)
			}
			if err := it.block(c.Foreach.Body); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%s: unsupported", c.Kind)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	}
	return false
}

func evalOp(op string, a []any) (any, error) {
	ints := func() (int64, int64, bool) {
		if len(a) != 2 {
			return 0, 0, false
		}
		x, ok1 := a[0].(int64)
		y, ok2 := a[1].(int64)
		return x, y, ok1 && ok2
	}
	switch op {
	case "copy_int", "copy_float", "copy_bool", "copy_string":
		return a[0], nil
	case "not":
		b, ok := a[0].(bool)
		if !ok {
			return nil, fmt.Errorf("not of %T", a[0])
		}
		return !b, nil
	case "negate_int":
		n, ok := a[0].(int64)
		if !ok {
			return nil, fmt.Errorf("negate of %T", a[0])
		}
		return -n, nil
	case "and", "or", "xor":
		x, ok1 := a[0].(bool)
		y, ok2 := a[1].(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s of non-bool", op)
		}
		switch op {
		case "and":
			return x && y, nil
		case "or":
			return x || y, nil
		}
		return x != y, nil
	}
	x, y, ok := ints()
	if !ok {
		return nil, fmt.Errorf("%s: unsupported operands %v", op, a)
	}
	switch op {
	case "plus_int":
		return x + y, nil
	case "minus_int":
		return x - y, nil
	case "mult_int":
		return x * y, nil
	case "div_int", "mod_int":
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		if op == "div_int" {
			return x / y, nil
		}
		return x % y, nil
	case "max_int":
		return max(x, y), nil
	case "min_int":
		return min(x, y), nil
	case "eq_int":
		return x == y, nil
	case "neq_int":
		return x != y, nil
	case "lt_int":
		return x < y, nil
	case "gt_int":
		return x > y, nil
	case "lte_int":
		return x <= y, nil
	case "gte_int":
		return x >= y, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}
