// Package ic defines the intermediate code tree consumed by the optimizer.
//
// A Program holds Functions; each Function owns one outer Block. A Block is
// an ordered list of Statements, each either an Instr or a Continuation, plus
// the Vars it declares. Continuations own child Blocks, so the whole program
// is a tree that passes mutate in place through Cursor, Inline and the
// renaming helpers.
//
// Var names are unique within a Program. Var identity is its name.
package ic
