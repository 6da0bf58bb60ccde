package ic

import "slices"

// StmtKind discriminates Statement.
type StmtKind uint8

const (
	StmtInstr StmtKind = iota
	StmtCont
)

var stmtKindNames = []string{"instr", "cont"}

func (k StmtKind) String() string { return enumString(stmtKindNames, uint8(k)) }

func (k StmtKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *StmtKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[StmtKind]("statement kind", stmtKindNames, string(b))
	*k = v
	return err
}

// Statement is an Instr or a Continuation.
type Statement struct {
	Kind  StmtKind      `msgpack:"kind" json:"kind"`
	Instr *Instr        `msgpack:"instr,omitempty" json:"instr,omitempty"`
	Cont  *Continuation `msgpack:"cont,omitempty" json:"cont,omitempty"`
}

func InstrStmt(in *Instr) Statement      { return Statement{Kind: StmtInstr, Instr: in} }
func ContStmt(c *Continuation) Statement { return Statement{Kind: StmtCont, Cont: c} }

// BlockKind records what owns a Block.
type BlockKind uint8

const (
	BlockMain BlockKind = iota
	BlockThen
	BlockElse
	BlockCase
	BlockLoopBody
	BlockWaitBody
	BlockNested
	BlockAsyncBody
)

var blockKindNames = []string{"main", "then", "else", "case", "loop_body", "wait_body", "nested", "async_body"}

func (k BlockKind) String() string { return enumString(blockKindNames, uint8(k)) }

func (k BlockKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *BlockKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[BlockKind]("block kind", blockKindNames, string(b))
	*k = v
	return err
}

// Block is an ordered statement list with its local declarations.
type Block struct {
	Kind  BlockKind   `msgpack:"kind" json:"kind"`
	Vars  []Var       `msgpack:"vars,omitempty" json:"vars,omitempty"`
	Stmts []Statement `msgpack:"stmts,omitempty" json:"stmts,omitempty"`
}

// NewBlock builds a block from instructions and continuations.
func NewBlock(kind BlockKind, stmts ...Statement) *Block {
	return &Block{Kind: kind, Stmts: stmts}
}

// Declare adds v to the block's declarations unless already present.
func (b *Block) Declare(vs ...Var) {
	for _, v := range vs {
		if !b.Declares(v.Name) {
			b.Vars = append(b.Vars, v)
		}
	}
}

// Declares reports whether name is declared directly in b.
func (b *Block) Declares(name string) bool {
	return slices.ContainsFunc(b.Vars, func(v Var) bool { return v.Name == name })
}

// Append adds statements at the end of b.
func (b *Block) Append(stmts ...Statement) {
	b.Stmts = append(b.Stmts, stmts...)
}

// Prepend moves src's statements and declarations to the front of b. src is
// left empty.
func (b *Block) Prepend(src *Block) {
	if src == nil {
		return
	}
	b.Declare(src.Vars...)
	b.Stmts = append(slices.Clip(src.Stmts), b.Stmts...)
	src.Stmts = nil
	src.Vars = nil
}

// Instrs iterates over instructions directly in b.
func (b *Block) Instrs() []*Instr {
	var out []*Instr
	for _, st := range b.Stmts {
		if st.Kind == StmtInstr {
			out = append(out, st.Instr)
		}
	}
	return out
}

// Conts iterates over continuations directly in b.
func (b *Block) Conts() []*Continuation {
	var out []*Continuation
	for _, st := range b.Stmts {
		if st.Kind == StmtCont {
			out = append(out, st.Cont)
		}
	}
	return out
}

// Walk visits b and every nested block in pre-order. Returning false from
// fn skips the children of that block.
func (b *Block) Walk(fn func(*Block) bool) {
	if b == nil || !fn(b) {
		return
	}
	for _, st := range b.Stmts {
		if st.Kind != StmtCont {
			continue
		}
		for _, child := range st.Cont.Blocks() {
			child.Walk(fn)
		}
	}
}

// Cursor is a repositionable position in a Block's statement list. After
// Replace or Inline the cursor rests on the first inserted statement, so a
// scan loop resumes there.
type Cursor struct {
	b   *Block
	pos int
}

// Cursor returns a cursor at the first statement of b.
func (b *Block) Cursor() *Cursor {
	return &Cursor{b: b}
}

// Valid reports whether the cursor is on a statement.
func (c *Cursor) Valid() bool { return c.pos >= 0 && c.pos < len(c.b.Stmts) }

// Pos returns the current index.
func (c *Cursor) Pos() int { return c.pos }

// Seek moves the cursor to index i.
func (c *Cursor) Seek(i int) { c.pos = i }

// Next advances to the following statement.
func (c *Cursor) Next() { c.pos++ }

// Stmt returns the current statement.
func (c *Cursor) Stmt() *Statement { return &c.b.Stmts[c.pos] }

// Replace substitutes the current statement with stmts. With no arguments
// it removes the statement and the cursor rests on its successor.
func (c *Cursor) Replace(stmts ...Statement) {
	c.b.Stmts = slices.Replace(c.b.Stmts, c.pos, c.pos+1, stmts...)
}

// InsertBefore inserts stmts before the current statement and moves the
// cursor to the first of them.
func (c *Cursor) InsertBefore(stmts ...Statement) {
	c.b.Stmts = slices.Insert(c.b.Stmts, c.pos, stmts...)
}

// Remove deletes the current statement.
func (c *Cursor) Remove() { c.Replace() }

// Inline replaces the current statement with child's statements and moves
// child's declarations into the cursor's block.
func (c *Cursor) Inline(child *Block) {
	if child == nil {
		c.Remove()
		return
	}
	c.b.Declare(child.Vars...)
	c.Replace(child.Stmts...)
}
