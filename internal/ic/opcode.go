package ic

// Opcode enumerates instruction kinds.
type Opcode uint8

const (
	OpComment Opcode = iota
	OpLoadInt
	OpLoadFloat
	OpLoadBool
	OpLoadString
	OpLoadRef
	OpStoreInt
	OpStoreFloat
	OpStoreBool
	OpStoreString
	OpAddressOf
	OpCopyRef
	OpLocalOp
	OpAsyncOp
	OpCall
	OpStructInsert
	OpStructLookup
	OpArrayInsertImm
	OpArrayInsertFuture
	OpArrayLookupImm
	OpArrayLookupRefImm
	OpArrayLookupFuture
	OpIncrRef
	OpDecrRef
	OpArrayDecrWriters
	OpLoopContinue
	OpLoopBreak
	// OpFake never appears in a Block; it tags synthetic ComputedValues.
	OpFake
)

var opcodeNames = []string{
	OpComment:           "comment",
	OpLoadInt:           "load_int",
	OpLoadFloat:         "load_float",
	OpLoadBool:          "load_bool",
	OpLoadString:        "load_string",
	OpLoadRef:           "load_ref",
	OpStoreInt:          "store_int",
	OpStoreFloat:        "store_float",
	OpStoreBool:         "store_bool",
	OpStoreString:       "store_string",
	OpAddressOf:         "address_of",
	OpCopyRef:           "copy_ref",
	OpLocalOp:           "local_op",
	OpAsyncOp:           "async_op",
	OpCall:              "call",
	OpStructInsert:      "struct_insert",
	OpStructLookup:      "struct_lookup",
	OpArrayInsertImm:    "array_insert_imm",
	OpArrayInsertFuture: "array_insert_future",
	OpArrayLookupImm:    "array_lookup_imm",
	OpArrayLookupRefImm: "array_lookup_ref_imm",
	OpArrayLookupFuture: "array_lookup_future",
	OpIncrRef:           "incr_ref",
	OpDecrRef:           "decr_ref",
	OpArrayDecrWriters:  "array_decr_writers",
	OpLoopContinue:      "loop_continue",
	OpLoopBreak:         "loop_break",
	OpFake:              "fake",
}

func (op Opcode) String() string { return enumString(opcodeNames, uint8(op)) }

func (op Opcode) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

func (op *Opcode) UnmarshalText(b []byte) error {
	v, err := parseEnum[Opcode]("opcode", opcodeNames, string(b))
	*op = v
	return err
}

// IsLoad reports whether op retrieves the contents of a future or ref.
func (op Opcode) IsLoad() bool {
	return op >= OpLoadInt && op <= OpLoadRef
}

// IsStore reports whether op closes a scalar future with a value.
func (op Opcode) IsStore() bool {
	return op >= OpStoreInt && op <= OpStoreString
}

// LoadFor returns the load opcode for a future of p.
func LoadFor(p Prim) (Opcode, bool) {
	switch p {
	case PrimInt:
		return OpLoadInt, true
	case PrimFloat:
		return OpLoadFloat, true
	case PrimBool:
		return OpLoadBool, true
	case PrimString:
		return OpLoadString, true
	default:
		return OpComment, false
	}
}

// StoreFor returns the store opcode for a future of p.
func StoreFor(p Prim) (Opcode, bool) {
	switch p {
	case PrimInt:
		return OpStoreInt, true
	case PrimFloat:
		return OpStoreFloat, true
	case PrimBool:
		return OpStoreBool, true
	case PrimString:
		return OpStoreString, true
	default:
		return OpComment, false
	}
}

var nonProgress = map[Opcode]bool{
	OpComment:          true,
	OpIncrRef:          true,
	OpDecrRef:          true,
	OpArrayDecrWriters: true,
	OpLocalOp:          true,
	OpStoreInt:         true,
	OpStoreFloat:       true,
	OpStoreBool:        true,
	OpStoreString:      true,
	OpCopyRef:          true,
	OpAddressOf:        true,
	OpLoadInt:          true,
	OpLoadFloat:        true,
	OpLoadBool:         true,
	OpLoadString:       true,
	OpLoadRef:          true,
}

// IsNonProgress reports whether op only does bookkeeping: refcounts, local
// scalar loads and stores, pure copies. A function whose top level is made
// of these does no useful work before its first wait.
func (op Opcode) IsNonProgress() bool { return nonProgress[op] }

// Synthetic subops used by ComputedValues with OpFake.
const (
	SubopCopyOf             = "copy_of"
	SubopArrayContents      = "array_contents"
	SubopRefToArrayContents = "ref_to_array_contents"
)

// OpInfo describes a local/async operator subop.
type OpInfo struct {
	Arity       int
	Result      Prim
	Commutative bool
	// Flip names the operator that computes the same result with the two
	// inputs swapped, e.g. gt_int for lt_int.
	Flip string
	Copy bool
	// SideEffects marks operators whose results must not be merged.
	SideEffects bool
}

var opInfo = map[string]OpInfo{
	"plus_int":     {Arity: 2, Result: PrimInt, Commutative: true},
	"minus_int":    {Arity: 2, Result: PrimInt},
	"mult_int":     {Arity: 2, Result: PrimInt, Commutative: true},
	"div_int":      {Arity: 2, Result: PrimInt},
	"mod_int":      {Arity: 2, Result: PrimInt},
	"negate_int":   {Arity: 1, Result: PrimInt},
	"max_int":      {Arity: 2, Result: PrimInt, Commutative: true},
	"min_int":      {Arity: 2, Result: PrimInt, Commutative: true},
	"eq_int":       {Arity: 2, Result: PrimBool, Commutative: true},
	"neq_int":      {Arity: 2, Result: PrimBool, Commutative: true},
	"lt_int":       {Arity: 2, Result: PrimBool, Flip: "gt_int"},
	"gt_int":       {Arity: 2, Result: PrimBool, Flip: "lt_int"},
	"lte_int":      {Arity: 2, Result: PrimBool, Flip: "gte_int"},
	"gte_int":      {Arity: 2, Result: PrimBool, Flip: "lte_int"},
	"plus_float":   {Arity: 2, Result: PrimFloat, Commutative: true},
	"minus_float":  {Arity: 2, Result: PrimFloat},
	"mult_float":   {Arity: 2, Result: PrimFloat, Commutative: true},
	"int_to_float": {Arity: 1, Result: PrimFloat},
	"and":          {Arity: 2, Result: PrimBool, Commutative: true},
	"or":           {Arity: 2, Result: PrimBool, Commutative: true},
	"xor":          {Arity: 2, Result: PrimBool, Commutative: true},
	"not":          {Arity: 1, Result: PrimBool},
	"strcat":       {Arity: 2, Result: PrimString},
	"copy_int":     {Arity: 1, Result: PrimInt, Copy: true},
	"copy_float":   {Arity: 1, Result: PrimFloat, Copy: true},
	"copy_bool":    {Arity: 1, Result: PrimBool, Copy: true},
	"copy_string":  {Arity: 1, Result: PrimString, Copy: true},
	"copy_blob":    {Arity: 1, Result: PrimBlob, Copy: true},
	"random":       {Arity: 0, Result: PrimFloat, SideEffects: true},
	"rand_int":     {Arity: 2, Result: PrimInt, SideEffects: true},
	"trace":        {Arity: -1, Result: PrimVoid, SideEffects: true},
	"assert":       {Arity: -1, Result: PrimVoid, SideEffects: true},
	"printf":       {Arity: -1, Result: PrimVoid, SideEffects: true},
}

// LookupOp returns metadata for an operator subop.
func LookupOp(subop string) (OpInfo, bool) {
	info, ok := opInfo[subop]
	return info, ok
}

// CopyOpFor returns the copy operator for p.
func CopyOpFor(p Prim) string {
	return "copy_" + p.String()
}
