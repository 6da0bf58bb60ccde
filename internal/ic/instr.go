package ic

import (
	"fmt"
	"strings"
)

// Instr is one IC instruction. Operand layout depends on Op:
//
//	load_*               Outputs[0] = value, Inputs[0] = source future/ref
//	store_*              Outputs[0] = future, Inputs[0] = value
//	address_of           Outputs[0] = ref, Inputs[0] = target
//	copy_ref             Outputs[0] = alias, Inputs[0] = alias
//	local_op, async_op   Subop = operator
//	call                 Subop = callee
//	struct_insert        Outputs[0] = struct, Subop = field, Inputs[0] = member
//	struct_lookup        Outputs[0] = alias, Subop = field, Inputs[0] = struct
//	array_insert_*       Outputs[0] = array, Inputs = index, member
//	array_lookup_*       Outputs[0] = alias or ref, Inputs = array, index
//	incr_ref, decr_ref   Inputs = target, amount
//	array_decr_writers   Inputs = array, amount
//	loop_continue        Subop = loop name, Inputs = next loop values
//	loop_break           Subop = loop name
//	comment              Subop = text
type Instr struct {
	Op      Opcode `msgpack:"op" json:"op"`
	Subop   string `msgpack:"subop,omitempty" json:"subop,omitempty"`
	Outputs []Var  `msgpack:"outputs,omitempty" json:"outputs,omitempty"`
	Inputs  []Arg  `msgpack:"inputs,omitempty" json:"inputs,omitempty"`
}

func NewComment(text string) *Instr {
	return &Instr{Op: OpComment, Subop: text}
}

// NewLoad fetches the contents of src into dst.
func NewLoad(dst, src Var) *Instr {
	op := OpLoadRef
	if src.Type.Kind != TypeRef {
		var ok bool
		if op, ok = LoadFor(src.Type.Prim); !ok {
			panic(fmt.Sprintf("ic: no load for %s", src.Type))
		}
	}
	return &Instr{Op: op, Outputs: []Var{dst}, Inputs: []Arg{VarArg(src)}}
}

// NewStore closes dst with val.
func NewStore(dst Var, val Arg) *Instr {
	op, ok := StoreFor(dst.Type.Prim)
	if !ok {
		panic(fmt.Sprintf("ic: no store for %s", dst.Type))
	}
	return &Instr{Op: op, Outputs: []Var{dst}, Inputs: []Arg{val}}
}

func NewAddressOf(ref, target Var) *Instr {
	return &Instr{Op: OpAddressOf, Outputs: []Var{ref}, Inputs: []Arg{VarArg(target)}}
}

func NewCopyRef(dst, src Var) *Instr {
	return &Instr{Op: OpCopyRef, Outputs: []Var{dst}, Inputs: []Arg{VarArg(src)}}
}

// NewLocalOp applies subop to value inputs. A zero out means no result.
func NewLocalOp(subop string, out Var, inputs ...Arg) *Instr {
	in := &Instr{Op: OpLocalOp, Subop: subop, Inputs: inputs}
	if !out.IsZero() {
		in.Outputs = []Var{out}
	}
	return in
}

// NewAsyncOp applies subop once its future inputs close.
func NewAsyncOp(subop string, out Var, inputs ...Arg) *Instr {
	in := &Instr{Op: OpAsyncOp, Subop: subop, Inputs: inputs}
	if !out.IsZero() {
		in.Outputs = []Var{out}
	}
	return in
}

// NewCall invokes the function named fn.
func NewCall(fn string, outputs []Var, inputs []Arg) *Instr {
	return &Instr{Op: OpCall, Subop: fn, Outputs: outputs, Inputs: inputs}
}

func NewStructInsert(s Var, field string, member Var) *Instr {
	return &Instr{Op: OpStructInsert, Subop: field, Outputs: []Var{s}, Inputs: []Arg{VarArg(member)}}
}

func NewStructLookup(dst, s Var, field string) *Instr {
	return &Instr{Op: OpStructLookup, Subop: field, Outputs: []Var{dst}, Inputs: []Arg{VarArg(s)}}
}

func NewArrayInsertImm(arr Var, ix Arg, member Var) *Instr {
	return &Instr{Op: OpArrayInsertImm, Outputs: []Var{arr}, Inputs: []Arg{ix, VarArg(member)}}
}

// NewArrayInsertFuture inserts member at a future index.
func NewArrayInsertFuture(arr, ix, member Var) *Instr {
	return &Instr{Op: OpArrayInsertFuture, Outputs: []Var{arr}, Inputs: []Arg{VarArg(ix), VarArg(member)}}
}

func NewArrayLookupImm(dst, arr Var, ix Arg) *Instr {
	return &Instr{Op: OpArrayLookupImm, Outputs: []Var{dst}, Inputs: []Arg{VarArg(arr), ix}}
}

func NewArrayLookupRefImm(dst, arr Var, ix Arg) *Instr {
	return &Instr{Op: OpArrayLookupRefImm, Outputs: []Var{dst}, Inputs: []Arg{VarArg(arr), ix}}
}

// NewArrayLookupFuture reads arr at a future index into dst.
func NewArrayLookupFuture(dst, arr, ix Var) *Instr {
	return &Instr{Op: OpArrayLookupFuture, Outputs: []Var{dst}, Inputs: []Arg{VarArg(arr), VarArg(ix)}}
}

func NewIncrRef(v Var, n int64) *Instr {
	return &Instr{Op: OpIncrRef, Inputs: []Arg{VarArg(v), IntArg(n)}}
}

func NewDecrRef(v Var, n int64) *Instr {
	return &Instr{Op: OpDecrRef, Inputs: []Arg{VarArg(v), IntArg(n)}}
}

func NewArrayDecrWriters(arr Var, n int64) *Instr {
	return &Instr{Op: OpArrayDecrWriters, Inputs: []Arg{VarArg(arr), IntArg(n)}}
}

// NewLoopContinue re-enters loop with the next iteration values.
func NewLoopContinue(loop string, next ...Arg) *Instr {
	return &Instr{Op: OpLoopContinue, Subop: loop, Inputs: next}
}

func NewLoopBreak(loop string) *Instr {
	return &Instr{Op: OpLoopBreak, Subop: loop}
}

// Clone returns a copy that shares no slices with in.
func (in *Instr) Clone() *Instr {
	if in == nil {
		return nil
	}
	out := *in
	out.Outputs = append([]Var(nil), in.Outputs...)
	out.Inputs = append([]Arg(nil), in.Inputs...)
	return &out
}

// IsReferenceInput reports whether input i names storage rather than a
// value: the instruction binds or adjusts the storage itself, so only a
// same-storage substitute may replace it.
func (in *Instr) IsReferenceInput(i int) bool {
	switch in.Op {
	case OpAddressOf, OpCopyRef, OpStructInsert:
		return i == 0
	case OpArrayInsertImm, OpArrayInsertFuture:
		return i == 1
	case OpIncrRef, OpDecrRef, OpArrayDecrWriters:
		return i == 0
	}
	return false
}

// inputNeedsVar reports whether input i must stay a Var operand.
func (in *Instr) inputNeedsVar(i int) bool {
	if in.IsReferenceInput(i) {
		return true
	}
	switch {
	case in.Op.IsLoad():
		return i == 0
	case in.Op == OpStructLookup, in.Op == OpCall:
		return true
	case in.Op == OpArrayLookupImm, in.Op == OpArrayLookupRefImm:
		return i == 0
	case in.Op == OpArrayLookupFuture:
		return true
	case in.Op == OpArrayInsertFuture:
		return i == 0
	}
	return false
}

// operandCounts gives the outputs and inputs each fixed-layout opcode
// takes. Opcodes not listed accept any count.
var operandCounts = map[Opcode][2]int{
	OpLoadInt:           {1, 1},
	OpLoadFloat:         {1, 1},
	OpLoadBool:          {1, 1},
	OpLoadString:        {1, 1},
	OpLoadRef:           {1, 1},
	OpStoreInt:          {1, 1},
	OpStoreFloat:        {1, 1},
	OpStoreBool:         {1, 1},
	OpStoreString:       {1, 1},
	OpAddressOf:         {1, 1},
	OpCopyRef:           {1, 1},
	OpStructInsert:      {1, 1},
	OpStructLookup:      {1, 1},
	OpArrayInsertImm:    {1, 2},
	OpArrayInsertFuture: {1, 2},
	OpArrayLookupImm:    {1, 2},
	OpArrayLookupRefImm: {1, 2},
	OpArrayLookupFuture: {1, 2},
	OpIncrRef:           {0, 2},
	OpDecrRef:           {0, 2},
	OpArrayDecrWriters:  {0, 2},
	OpLoopBreak:         {0, 0},
}

// CheckShape reports operand layouts the opcode does not accept: wrong
// operand counts, null inputs, unnamed outputs, or literals where storage
// is required.
func (in *Instr) CheckShape() error {
	if in.Op >= OpFake {
		return fmt.Errorf("%s is not an instruction opcode", in.Op)
	}
	if n, ok := operandCounts[in.Op]; ok && (len(in.Outputs) != n[0] || len(in.Inputs) != n[1]) {
		return fmt.Errorf("want %d outputs and %d inputs, got %d and %d", n[0], n[1], len(in.Outputs), len(in.Inputs))
	}
	if in.Op == OpLocalOp || in.Op == OpAsyncOp {
		if len(in.Outputs) > 1 {
			return fmt.Errorf("operator with %d outputs", len(in.Outputs))
		}
		if info, ok := LookupOp(in.Subop); ok && info.Arity >= 0 && len(in.Inputs) != info.Arity {
			return fmt.Errorf("%s takes %d inputs, got %d", in.Subop, info.Arity, len(in.Inputs))
		}
	}
	for i, v := range in.Outputs {
		if v.IsZero() {
			return fmt.Errorf("output %d is unnamed", i)
		}
	}
	for i, a := range in.Inputs {
		switch {
		case a.Kind == ArgNone:
			return fmt.Errorf("input %d is null", i)
		case a.IsVar() && a.Var.IsZero():
			return fmt.Errorf("input %d is unnamed", i)
		case !a.IsVar() && in.Op != OpCall && in.inputNeedsVar(i):
			return fmt.Errorf("input %d must be a variable, got %s", i, a)
		}
	}
	return nil
}

// RenameInputs rewrites Var operands. value is consulted for value
// positions and ref for reference positions; either may be nil. Returns the
// number of operands changed.
func (in *Instr) RenameInputs(value, ref func(Var) (Arg, bool)) int {
	n := 0
	for i, a := range in.Inputs {
		if !a.IsVar() {
			continue
		}
		fn := value
		if in.IsReferenceInput(i) {
			fn = ref
		}
		if fn == nil {
			continue
		}
		repl, ok := fn(a.Var)
		if !ok || repl.Equal(a) || repl.Kind == ArgNone {
			continue
		}
		if !repl.IsVar() && in.inputNeedsVar(i) {
			continue
		}
		in.Inputs[i] = repl
		n++
	}
	return n
}

// RenameOutputs rewrites output Vars. Returns the number changed.
func (in *Instr) RenameOutputs(fn func(Var) (Var, bool)) int {
	n := 0
	for i, v := range in.Outputs {
		repl, ok := fn(v)
		if !ok || repl.Same(v) {
			continue
		}
		in.Outputs[i] = repl
		n++
	}
	return n
}

// Vars returns every Var the instruction mentions, outputs first.
func (in *Instr) Vars() []Var {
	out := make([]Var, 0, len(in.Outputs)+len(in.Inputs))
	out = append(out, in.Outputs...)
	for _, a := range in.Inputs {
		if a.IsVar() {
			out = append(out, a.Var)
		}
	}
	return out
}

// Pure reports whether the instruction can be dropped when none of its
// outputs are read.
func (in *Instr) Pure() bool {
	switch in.Op {
	case OpLoadInt, OpLoadFloat, OpLoadBool, OpLoadString, OpLoadRef,
		OpAddressOf, OpCopyRef, OpStructLookup, OpArrayLookupImm, OpArrayLookupRefImm:
		return len(in.Outputs) > 0
	case OpLocalOp, OpAsyncOp:
		info, ok := LookupOp(in.Subop)
		return ok && !info.SideEffects && len(in.Outputs) > 0
	}
	return false
}

func (in *Instr) String() string {
	var sb strings.Builder
	if len(in.Outputs) > 0 {
		for i, v := range in.Outputs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteString(" = ")
	}
	sb.WriteString(in.Op.String())
	if in.Op == OpComment {
		sb.WriteString(" // ")
		sb.WriteString(in.Subop)
		return sb.String()
	}
	if in.Subop != "" {
		sb.WriteByte(' ')
		sb.WriteString(in.Subop)
	}
	for i, a := range in.Inputs {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	return sb.String()
}
