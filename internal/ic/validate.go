package ic

import (
	"errors"
	"fmt"

	"weft/internal/scope"
)

// Validate checks the structural and scoping invariants of p: every Var is
// declared once, every use is visible (declared in an enclosing block, a
// function parameter, a global constant, or passed in or constructed by the
// enclosing continuation), and continuation payloads are well formed.
func Validate(p *Program) error {
	if p == nil {
		return nil
	}
	var errs []error
	globals := scope.NewSet[string]()
	for _, g := range p.Globals {
		globals.Add(g.Var.Name)
	}
	for _, f := range p.Funcs {
		if f == nil {
			continue
		}
		if err := validateFunc(f, globals); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

type validator struct {
	globals  *scope.Set[string]
	declared map[string]bool
	errs     []error
}

func validateFunc(f *Function, globals *scope.Set[string]) error {
	if f.Body == nil {
		return errors.New("missing body")
	}
	v := &validator{globals: globals, declared: make(map[string]bool)}
	vis := scope.NewSet[string]()
	for _, p := range append(append([]Var(nil), f.Inputs...), f.Outputs...) {
		v.declare(p, "signature")
		vis.Add(p.Name)
	}
	for _, b := range f.BlockingInputs {
		if !f.IsInput(b.Name) {
			v.errs = append(v.errs, fmt.Errorf("blocking input %s is not an input", b.Name))
		}
	}
	v.block(f.Body, vis, "body")
	return errors.Join(v.errs...)
}

func (v *validator) declare(x Var, where string) {
	if x.IsZero() {
		v.errs = append(v.errs, fmt.Errorf("%s: unnamed variable", where))
		return
	}
	if x.Kind == VarGlobalConst {
		return
	}
	if v.declared[x.Name] {
		v.errs = append(v.errs, fmt.Errorf("%s: %s declared twice", where, x.Name))
	}
	v.declared[x.Name] = true
}

func (v *validator) use(x Var, vis *scope.Set[string], where string) {
	if vis.Has(x.Name) || v.globals.Has(x.Name) {
		return
	}
	v.errs = append(v.errs, fmt.Errorf("%s: %s is not visible", where, x.Name))
}

func (v *validator) block(b *Block, vis *scope.Set[string], where string) {
	local := vis.Child()
	for _, x := range b.Vars {
		v.declare(x, where)
		local.Add(x.Name)
	}
	for i, st := range b.Stmts {
		at := fmt.Sprintf("%s[%d]", where, i)
		switch st.Kind {
		case StmtInstr:
			if st.Instr == nil {
				v.errs = append(v.errs, fmt.Errorf("%s: nil instruction", at))
				continue
			}
			if err := st.Instr.CheckShape(); err != nil {
				v.errs = append(v.errs, fmt.Errorf("%s %s: %w", at, st.Instr, err))
				continue
			}
			for _, x := range st.Instr.Vars() {
				v.use(x, local, at+" "+st.Instr.Op.String())
			}
		case StmtCont:
			if st.Cont == nil {
				v.errs = append(v.errs, fmt.Errorf("%s: nil continuation", at))
				continue
			}
			v.cont(st.Cont, local, at+" "+st.Cont.Kind.String())
		}
	}
}

func (v *validator) cont(c *Continuation, vis *scope.Set[string], where string) {
	for _, x := range c.RequiredVars() {
		v.use(x, vis, where)
	}
	if err := c.CheckShape(); err != nil {
		v.errs = append(v.errs, fmt.Errorf("%s: %w", where, err))
	}

	var inner *scope.Set[string]
	if c.PassesAutomatically() {
		inner = vis.Child()
	} else {
		inner = scope.NewSet[string]()
		for _, x := range c.PassedIn {
			v.use(x, vis, where+" passin")
			inner.Add(x.Name)
		}
	}
	for _, x := range c.ConstructedVars() {
		v.declare(x, where)
		inner.Add(x.Name)
	}
	for i, b := range c.Blocks() {
		v.block(b, inner, fmt.Sprintf("%s/%d", where, i))
	}
}

// CheckStructure reports malformed instructions and continuation payloads
// as DefectErrors, without looking at scoping. Passes index operands by
// position and rely on it.
func CheckStructure(p *Program) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, f := range p.Funcs {
		if f == nil {
			continue
		}
		if f.Body == nil {
			errs = append(errs, Defectf(f.Name, "body", "missing body"))
			continue
		}
		errs = checkBlockShape(f.Name, f.Body, "body", errs)
	}
	return errors.Join(errs...)
}

func checkBlockShape(fn string, b *Block, where string, errs []error) []error {
	for i, st := range b.Stmts {
		at := fmt.Sprintf("%s[%d]", where, i)
		switch st.Kind {
		case StmtInstr:
			if st.Instr == nil {
				errs = append(errs, Defectf(fn, at, "nil instruction"))
			} else if err := st.Instr.CheckShape(); err != nil {
				errs = append(errs, Defectf(fn, at+" "+st.Instr.String(), "%v", err))
			}
		case StmtCont:
			if st.Cont == nil {
				errs = append(errs, Defectf(fn, at, "nil continuation"))
				continue
			}
			if err := st.Cont.CheckShape(); err != nil {
				errs = append(errs, Defectf(fn, at+" "+st.Cont.Kind.String(), "%v", err))
				continue
			}
			for j, child := range st.Cont.Blocks() {
				errs = checkBlockShape(fn, child, fmt.Sprintf("%s/%d", at, j), errs)
			}
		}
	}
	return errs
}
