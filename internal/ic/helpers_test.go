package ic_test

import "weft/internal/ic"

func future(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.FutureType(ic.PrimInt), Kind: ic.VarFuture}
}

func value(name string) ic.Var {
	return ic.Var{Name: name, Type: ic.ValueType(ic.PrimInt), Kind: ic.VarValue}
}

func instrs(ins ...*ic.Instr) []ic.Statement {
	out := make([]ic.Statement, len(ins))
	for i, in := range ins {
		out[i] = ic.InstrStmt(in)
	}
	return out
}
