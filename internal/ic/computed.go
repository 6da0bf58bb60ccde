package ic

import (
	"fmt"
	"strings"
)

// EquivKind says how two locations holding the same ComputedValue relate.
type EquivKind uint8

const (
	// EquivValue locations hold equal data.
	EquivValue EquivKind = iota
	// EquivReference locations are the same storage.
	EquivReference
)

func (k EquivKind) String() string {
	if k == EquivReference {
		return "reference"
	}
	return "value"
}

// ComputedValue describes what an instruction computes, independent of
// where the result lands. Two ComputedValues are interchangeable when Op,
// Subop and Inputs are equal.
type ComputedValue struct {
	Op     Opcode
	Subop  string
	Inputs []Arg
	// Loc is where the value is available. ArgNone if unknown.
	Loc    Arg
	Closed bool
	Equiv  EquivKind
}

// IsCopy reports whether cv marks Loc as a plain copy of Inputs[0].
func (cv ComputedValue) IsCopy() bool {
	return cv.Op == OpFake && cv.Subop == SubopCopyOf
}

// Key returns the value-numbering key. It fails if any input is missing,
// which always indicates a malformed instruction.
func (cv ComputedValue) Key() (string, error) {
	var sb strings.Builder
	sb.WriteString(cv.Op.String())
	if cv.Subop != "" {
		sb.WriteByte('/')
		sb.WriteString(cv.Subop)
	}
	sb.WriteByte('(')
	for i, in := range cv.Inputs {
		if in.Kind == ArgNone {
			return "", fmt.Errorf("computed value %s has no input #%d", cv.Op, i)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(in.Key())
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func (cv ComputedValue) String() string {
	parts := make([]string, len(cv.Inputs))
	for i, in := range cv.Inputs {
		parts[i] = in.String()
	}
	op := cv.Op.String()
	if cv.Subop != "" {
		op += "/" + cv.Subop
	}
	s := fmt.Sprintf("%s(%s) @ %s", op, strings.Join(parts, ", "), cv.Loc)
	if cv.Closed {
		s += " closed"
	}
	if cv.Equiv == EquivReference {
		s += " ref"
	}
	return s
}

// RetrieveCV is the fact "loc holds the contents of src".
func RetrieveCV(src Var, loc Arg) ComputedValue {
	if src.Type.Kind == TypeRef {
		return ComputedValue{Op: OpLoadRef, Inputs: []Arg{VarArg(src)}, Loc: loc, Equiv: EquivReference}
	}
	op, _ := LoadFor(src.Type.Prim)
	return ComputedValue{Op: op, Inputs: []Arg{VarArg(src)}, Loc: loc, Closed: true}
}

// AssignCV is the fact "dst was closed with val".
func AssignCV(val Arg, dst Var) ComputedValue {
	op, _ := StoreFor(dst.Type.Prim)
	return ComputedValue{Op: op, Inputs: []Arg{val}, Loc: VarArg(dst), Closed: true}
}

// CopyCV marks dst as a copy of src.
func CopyCV(src Arg, dst Var, equiv EquivKind) ComputedValue {
	return ComputedValue{Op: OpFake, Subop: SubopCopyOf, Inputs: []Arg{src}, Loc: VarArg(dst), Equiv: equiv}
}

// ArrayContentsCV is the fact "loc is the member stored at arr[ix]".
func ArrayContentsCV(arr Var, ix Arg, loc Arg) ComputedValue {
	return ComputedValue{
		Op: OpFake, Subop: SubopArrayContents,
		Inputs: []Arg{VarArg(arr), ix}, Loc: loc, Equiv: EquivReference,
	}
}

// canonicalOp orders operands of commutative and flippable operators so that
// equal expressions share a key.
func canonicalOp(subop string, inputs []Arg) (string, []Arg) {
	out := append([]Arg(nil), inputs...)
	info, ok := LookupOp(subop)
	if !ok || len(out) != 2 {
		return subop, out
	}
	if out[0].Key() <= out[1].Key() {
		return subop, out
	}
	switch {
	case info.Commutative:
		out[0], out[1] = out[1], out[0]
	case info.Flip != "":
		out[0], out[1] = out[1], out[0]
		subop = info.Flip
	}
	return subop, out
}
