package opt

import (
	"slices"

	"weft/internal/ic"
)

// liftWaits promotes the inputs an async function waits on before doing
// any work to blocking inputs, so callers can defer dispatch instead of
// dispatching a task that immediately suspends. It applies when every
// top-level instruction is bookkeeping and every top-level continuation is
// a WAIT or LOOP gated only on the function's inputs. Returns the number of
// inputs added.
func liftWaits(f *ic.Function) int {
	if !f.Async || f.Body == nil {
		return 0
	}
	var (
		common []string
		gated  bool
	)
	for _, st := range f.Body.Stmts {
		if st.Kind == ic.StmtInstr {
			if !st.Instr.Op.IsNonProgress() {
				return 0
			}
			continue
		}
		c := st.Cont
		if c.Kind != ic.ContWait && c.Kind != ic.ContLoop {
			return 0
		}
		var guards []string
		for _, v := range c.Guards() {
			if v.AlwaysClosed() {
				continue
			}
			if !f.IsInput(v.Name) {
				return 0
			}
			guards = append(guards, v.Name)
		}
		if !gated {
			common, gated = guards, true
			continue
		}
		common = slices.DeleteFunc(common, func(n string) bool { return !slices.Contains(guards, n) })
	}

	added := 0
	for _, in := range f.Inputs {
		if slices.Contains(common, in.Name) && !f.IsBlockingInput(in.Name) {
			f.BlockingInputs = append(f.BlockingInputs, in)
			added++
		}
	}
	return added
}
