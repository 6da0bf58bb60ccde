package opt

import (
	"weft/internal/ic"
)

// recordFacts adds the instruction's ComputedValues to st. Closed facts
// close their location, and load-family facts also close the future they
// read. With value numbering on, a fact matching an earlier one records a
// substitution of one location by the other.
func (e *engine) recordFacts(in *ic.Instr, st *state) error {
	for _, cv := range in.ComputedValues(st.lookup) {
		key, err := cv.Key()
		if err != nil {
			return ic.Defectf(e.fn.Name, in.String(), "%v", err)
		}
		if cv.IsCopy() {
			if e.cfg.ValueNumbering && cv.Loc.IsVar() {
				e.substitute(st, cv.Loc.Var, cv.Inputs[0], cv.Equiv)
			}
			continue
		}
		if cv.Closed {
			if cv.Loc.IsVar() {
				st.close(cv.Loc.Var.Name)
			}
			if cv.Op.IsLoad() && cv.Inputs[0].IsVar() {
				st.close(cv.Inputs[0].Var.Name)
			}
		}
		if cv.Loc.Kind == ic.ArgNone {
			continue
		}
		curr := st.resolve(cv.Loc, cv.Equiv == ic.EquivValue)
		prev, ok := st.avail.Get(key)
		if !ok {
			st.avail.Put(key, curr)
			continue
		}
		prev = st.resolve(prev, cv.Equiv == ic.EquivValue)
		if prev.Equal(curr) {
			continue
		}
		if !e.cfg.ValueNumbering {
			continue
		}
		e.merge(st, key, prev, curr, cv.Equiv)
	}
	return nil
}

// merge picks the canonical location between an earlier location prev and
// a new location curr holding the same value. Constants win over
// variables; between variables a closed one wins, else the earlier.
func (e *engine) merge(st *state, key string, prev, curr ic.Arg, equiv ic.EquivKind) {
	switch {
	case prev.IsConst() && curr.IsConst():
		// Conflicting literals mean unreachable code; keep the first.
	case prev.IsConst():
		e.substitute(st, curr.Var, prev, equiv)
	case curr.IsConst():
		st.avail.Put(key, curr)
		e.substitute(st, prev.Var, curr, equiv)
	case equiv == ic.EquivReference:
		e.substitute(st, curr.Var, prev, equiv)
	case st.isClosed(prev.Var) || !st.isClosed(curr.Var):
		e.substitute(st, curr.Var, prev, equiv)
	default:
		st.avail.Put(key, curr)
		e.substitute(st, prev.Var, curr, equiv)
	}
}

// substitute records that later occurrences of loser are replaced by
// winner: reads only for VALUE equivalence, every position for REFERENCE.
// Substitutions apply going forward only.
func (e *engine) substitute(st *state, loser ic.Var, winner ic.Arg, equiv ic.EquivKind) {
	if equiv == ic.EquivReference && !winner.IsVar() {
		return
	}
	winner = st.resolve(winner, equiv == ic.EquivValue)
	if winner.IsVar() && winner.Var.Same(loser) {
		return
	}
	if winner.IsVar() && st.resolve(winner, true).Equal(ic.VarArg(loser)) {
		return
	}
	if equiv == ic.EquivReference {
		st.renameAll.Put(loser.Name, winner)
	} else {
		st.renameIn.Put(loser.Name, winner)
	}
	e.point("value-number", func() string { return loser.Name + " -> " + winner.String() })
}
