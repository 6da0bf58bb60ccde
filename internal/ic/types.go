package ic

// Prim is a scalar element type.
type Prim uint8

const (
	PrimNone Prim = iota
	PrimInt
	PrimFloat
	PrimBool
	PrimString
	PrimBlob
	PrimVoid
)

var primNames = []string{"none", "int", "float", "bool", "string", "blob", "void"}

func (p Prim) String() string { return enumString(primNames, uint8(p)) }

func (p Prim) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Prim) UnmarshalText(b []byte) error {
	v, err := parseEnum[Prim]("prim", primNames, string(b))
	*p = v
	return err
}

// TypeKind classifies storage.
type TypeKind uint8

const (
	// TypeValue is a local scalar value.
	TypeValue TypeKind = iota
	// TypeFuture is a single-assignment scalar.
	TypeFuture
	// TypeRef is a reference to a future of Prim.
	TypeRef
	// TypeArray is an array of futures of Prim.
	TypeArray
	// TypeStruct is a struct named by Struct.
	TypeStruct
	// TypeUpdateable is a mutable scalar, always readable.
	TypeUpdateable
)

var typeKindNames = []string{"value", "future", "ref", "array", "struct", "updateable"}

func (k TypeKind) String() string { return enumString(typeKindNames, uint8(k)) }

func (k TypeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TypeKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[TypeKind]("type kind", typeKindNames, string(b))
	*k = v
	return err
}

// Type describes a Var's storage. It is comparable.
type Type struct {
	Kind   TypeKind `msgpack:"kind" json:"kind"`
	Prim   Prim     `msgpack:"prim" json:"prim"`
	Struct string   `msgpack:"struct,omitempty" json:"struct,omitempty"`
}

func ValueType(p Prim) Type       { return Type{Kind: TypeValue, Prim: p} }
func FutureType(p Prim) Type      { return Type{Kind: TypeFuture, Prim: p} }
func RefType(p Prim) Type         { return Type{Kind: TypeRef, Prim: p} }
func ArrayType(p Prim) Type       { return Type{Kind: TypeArray, Prim: p} }
func StructType(name string) Type { return Type{Kind: TypeStruct, Struct: name} }
func UpdateableType(p Prim) Type  { return Type{Kind: TypeUpdateable, Prim: p} }

// IsScalarFuture reports whether values of t can be fetched into a local.
func (t Type) IsScalarFuture() bool {
	_, ok := LoadFor(t.Prim)
	return t.Kind == TypeFuture && ok
}

// Local returns the value type a fetch of t produces.
func (t Type) Local() Type {
	return ValueType(t.Prim)
}

func (t Type) String() string {
	switch t.Kind {
	case TypeValue:
		return t.Prim.String()
	case TypeFuture:
		return "$" + t.Prim.String()
	case TypeRef:
		return "&$" + t.Prim.String()
	case TypeArray:
		return "$" + t.Prim.String() + "[]"
	case TypeStruct:
		return "struct " + t.Struct
	case TypeUpdateable:
		return "updateable " + t.Prim.String()
	default:
		return t.Kind.String()
	}
}
