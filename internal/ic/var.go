package ic

import (
	"strconv"
)

// VarKind tells how a Var behaves with respect to closedness.
type VarKind uint8

const (
	// VarFuture is single-assignment and closed once written.
	VarFuture VarKind = iota
	// VarValue is an already-available local value.
	VarValue
	// VarAlias is a handle to storage owned elsewhere.
	VarAlias
	// VarGlobalConst is a program-wide constant.
	VarGlobalConst
)

var varKindNames = []string{"future", "value", "alias", "global_const"}

func (k VarKind) String() string { return enumString(varKindNames, uint8(k)) }

func (k VarKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *VarKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[VarKind]("var kind", varKindNames, string(b))
	*k = v
	return err
}

// Var is named, typed storage. The zero Var means "no variable".
type Var struct {
	Name string  `msgpack:"name" json:"name"`
	Type Type    `msgpack:"type" json:"type"`
	Kind VarKind `msgpack:"kind" json:"kind"`
}

// IsZero reports whether v is the "no variable" value.
func (v Var) IsZero() bool { return v.Name == "" }

// Same reports whether v and o name the same storage.
func (v Var) Same(o Var) bool { return v.Name == o.Name }

// AlwaysClosed reports whether v never blocks a reader.
func (v Var) AlwaysClosed() bool {
	return v.Kind == VarValue || v.Kind == VarGlobalConst || v.Type.Kind == TypeUpdateable
}

func (v Var) String() string {
	if v.Name == "" {
		return "_"
	}
	return v.Name
}

// ArgKind discriminates Arg.
type ArgKind uint8

const (
	ArgNone ArgKind = iota
	ArgVar
	ArgInt
	ArgFloat
	ArgBool
	ArgString
)

var argKindNames = []string{"none", "var", "int", "float", "bool", "string"}

func (k ArgKind) String() string { return enumString(argKindNames, uint8(k)) }

func (k ArgKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ArgKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[ArgKind]("arg kind", argKindNames, string(b))
	*k = v
	return err
}

// Arg is an operand: a Var reference or a literal.
type Arg struct {
	Kind  ArgKind `msgpack:"kind" json:"kind"`
	Var   Var     `msgpack:"var,omitempty" json:"var,omitzero"`
	Int   int64   `msgpack:"int,omitempty" json:"int,omitempty"`
	Float float64 `msgpack:"float,omitempty" json:"float,omitempty"`
	Bool  bool    `msgpack:"bool,omitempty" json:"bool,omitempty"`
	Str   string  `msgpack:"str,omitempty" json:"str,omitempty"`
}

func VarArg(v Var) Arg       { return Arg{Kind: ArgVar, Var: v} }
func IntArg(n int64) Arg     { return Arg{Kind: ArgInt, Int: n} }
func FloatArg(f float64) Arg { return Arg{Kind: ArgFloat, Float: f} }
func BoolArg(b bool) Arg     { return Arg{Kind: ArgBool, Bool: b} }
func StringArg(s string) Arg { return Arg{Kind: ArgString, Str: s} }

func (a Arg) IsVar() bool   { return a.Kind == ArgVar }
func (a Arg) IsConst() bool { return a.Kind != ArgNone && a.Kind != ArgVar }

// Prim returns the scalar type of a literal, or of the referenced Var.
func (a Arg) Prim() Prim {
	switch a.Kind {
	case ArgVar:
		return a.Var.Type.Prim
	case ArgInt:
		return PrimInt
	case ArgFloat:
		return PrimFloat
	case ArgBool:
		return PrimBool
	case ArgString:
		return PrimString
	default:
		return PrimNone
	}
}

// Key is a stable, injective encoding of a used as a hash component.
func (a Arg) Key() string {
	switch a.Kind {
	case ArgVar:
		return "v:" + a.Var.Name
	case ArgInt:
		return "i:" + strconv.FormatInt(a.Int, 10)
	case ArgFloat:
		return "f:" + strconv.FormatFloat(a.Float, 'g', -1, 64)
	case ArgBool:
		return "b:" + strconv.FormatBool(a.Bool)
	case ArgString:
		return "s:" + strconv.Quote(a.Str)
	default:
		return "none"
	}
}

// Equal compares operands structurally.
func (a Arg) Equal(o Arg) bool { return a.Key() == o.Key() }

// Truth reports the boolean reading of a literal, as used by branch
// selection. ok is false for non-literals.
func (a Arg) Truth() (truth, ok bool) {
	switch a.Kind {
	case ArgBool:
		return a.Bool, true
	case ArgInt:
		return a.Int != 0, true
	default:
		return false, false
	}
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgVar:
		return a.Var.String()
	case ArgInt:
		return strconv.FormatInt(a.Int, 10)
	case ArgFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case ArgBool:
		return strconv.FormatBool(a.Bool)
	case ArgString:
		return strconv.Quote(a.Str)
	default:
		return "<none>"
	}
}
