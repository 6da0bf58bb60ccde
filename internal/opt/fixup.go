package opt

import (
	"errors"
	"fmt"

	"weft/internal/ic"
	"weft/internal/scope"
)

// Fixup recomputes the passed-in lists of every explicit continuation from
// what its blocks actually use, and declares global constants locally
// where a block uses one it cannot see. A use that cannot be traced to a
// declaration, a function parameter or a global is reported as a
// *ic.DefectError.
func Fixup(p *ic.Program) error {
	if p == nil {
		return nil
	}
	globals := make(map[string]bool, len(p.Globals))
	for _, g := range p.Globals {
		globals[g.Var.Name] = true
	}
	var errs []error
	for _, f := range p.Funcs {
		if f == nil {
			continue
		}
		if err := fixupFunc(f, globals); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type fixer struct {
	globals map[string]bool
}

func fixupFunc(f *ic.Function, globals map[string]bool) error {
	if f.Body == nil {
		return ic.Defectf(f.Name, "body", "missing body")
	}
	vis := scope.NewSet[string]()
	for _, v := range f.Inputs {
		vis.Add(v.Name)
	}
	for _, v := range f.Outputs {
		vis.Add(v.Name)
	}
	fx := &fixer{globals: globals}
	if missing := fx.block(f.Body, vis); len(missing) > 0 {
		return ic.Defectf(f.Name, "body", "reference to undefined variables %s", joinNames(missing))
	}
	return nil
}

// needs is an insertion-ordered set of Vars.
type needs struct {
	vars []ic.Var
	seen map[string]bool
}

func (n *needs) add(v ic.Var) {
	if n.seen == nil {
		n.seen = make(map[string]bool)
	}
	if !n.seen[v.Name] {
		n.seen[v.Name] = true
		n.vars = append(n.vars, v)
	}
}

// block returns the Vars b uses that are neither declared in b nor visible
// through vis, in order of first use.
func (fx *fixer) block(b *ic.Block, vis *scope.Set[string]) []ic.Var {
	local := vis.Child()
	for _, v := range b.Vars {
		local.Add(v.Name)
	}
	var out needs
	use := func(v ic.Var) {
		switch {
		case v.IsZero() || local.Has(v.Name):
		case fx.globals[v.Name]:
			b.Declare(v)
			local.Add(v.Name)
		default:
			out.add(v)
		}
	}
	for _, st := range b.Stmts {
		if st.Kind == ic.StmtInstr {
			for _, v := range st.Instr.Vars() {
				use(v)
			}
			continue
		}
		c := st.Cont
		for _, v := range c.RequiredVars() {
			use(v)
		}
		for _, v := range fx.cont(c, local) {
			use(v)
		}
	}
	return out.vars
}

// cont fixes c's children and returns what c needs from the enclosing
// scope.
func (fx *fixer) cont(c *ic.Continuation, vis *scope.Set[string]) []ic.Var {
	var inner *scope.Set[string]
	if c.PassesAutomatically() {
		inner = vis.Child()
	} else {
		inner = scope.NewSet[string]()
	}
	for _, v := range c.ConstructedVars() {
		inner.Add(v.Name)
	}
	var out needs
	for _, child := range c.Blocks() {
		for _, v := range fx.block(child, inner) {
			out.add(v)
		}
	}
	if c.PassesAutomatically() {
		c.PassedIn = nil
	} else {
		c.PassedIn = out.vars
	}
	return out.vars
}

// CheckPassing reports explicit continuations whose passed-in lists differ
// from what Fixup would compute, without modifying p.
func CheckPassing(p *ic.Program) error {
	cp := ic.CopyProgram(p)
	if err := Fixup(cp); err != nil {
		return err
	}
	var errs []error
	for i, f := range p.Funcs {
		if f == nil {
			continue
		}
		var want []*ic.Continuation
		cp.Funcs[i].Body.Walk(func(b *ic.Block) bool {
			want = append(want, b.Conts()...)
			return true
		})
		k := 0
		f.Body.Walk(func(b *ic.Block) bool {
			for _, c := range b.Conts() {
				if k < len(want) && !c.PassesAutomatically() && !sameNames(c.PassedIn, want[k].PassedIn) {
					errs = append(errs, fmt.Errorf("function %s: %s passes [%s], uses [%s]",
						f.Name, c.Header(), joinNames(c.PassedIn), joinNames(want[k].PassedIn)))
				}
				k++
			}
			return true
		})
	}
	return errors.Join(errs...)
}

func sameNames(a, b []ic.Var) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v.Name] = true
	}
	for _, v := range b {
		if !seen[v.Name] {
			return false
		}
	}
	return true
}
