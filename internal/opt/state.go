package opt

import (
	"slices"

	"weft/internal/ic"
	"weft/internal/scope"
)

// renameChainLimit bounds substitution chain walks. Chains are acyclic by
// construction; the limit only guards against defects.
const renameChainLimit = 64

// state is the dataflow state at one program point. Children see their
// ancestors' entries and write only their own layer.
type state struct {
	closed *scope.Set[string]
	// avail maps a ComputedValue key to the canonical location of the value.
	avail *scope.Map[string, ic.Arg]
	// dependsOn maps a future to the futures that must close before it can.
	dependsOn *scope.Map[string, []string]
	// renameIn substitutes value reads; renameAll substitutes every
	// occurrence, since both names denote one storage.
	renameIn  *scope.Map[string, ic.Arg]
	renameAll *scope.Map[string, ic.Arg]
}

func newState() *state {
	return &state{
		closed:    scope.NewSet[string](),
		avail:     scope.NewMap[string, ic.Arg](),
		dependsOn: scope.NewMap[string, []string](),
		renameIn:  scope.NewMap[string, ic.Arg](),
		renameAll: scope.NewMap[string, ic.Arg](),
	}
}

func (s *state) child() *state {
	return &state{
		closed:    s.closed.Child(),
		avail:     s.avail.Child(),
		dependsOn: s.dependsOn.Child(),
		renameIn:  s.renameIn.Child(),
		renameAll: s.renameAll.Child(),
	}
}

func (s *state) isClosed(v ic.Var) bool {
	return v.AlwaysClosed() || s.closed.Has(v.Name)
}

// close marks name closed along with everything it depends on.
func (s *state) close(name string) {
	work := []string{name}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		s.closed.Add(n)
		if deps, ok := s.dependsOn.Get(n); ok {
			s.dependsOn.Remove(n)
			work = append(work, deps...)
		}
	}
}

// addDeps records that future cannot close before deps.
func (s *state) addDeps(future string, deps []string) {
	if len(deps) == 0 {
		return
	}
	prev, _ := s.dependsOn.Get(future)
	merged := slices.Clone(prev)
	for _, d := range deps {
		if !slices.Contains(merged, d) {
			merged = append(merged, d)
		}
	}
	s.dependsOn.Put(future, merged)
}

func (s *state) lookup(cv ic.ComputedValue) (ic.Arg, bool) {
	key, err := cv.Key()
	if err != nil {
		return ic.Arg{}, false
	}
	loc, ok := s.avail.Get(key)
	if !ok {
		return ic.Arg{}, false
	}
	return s.resolve(loc, true), true
}

// resolve follows substitutions from a. Value reads consult both tables,
// storage positions only renameAll.
func (s *state) resolve(a ic.Arg, value bool) ic.Arg {
	for range renameChainLimit {
		if !a.IsVar() {
			return a
		}
		if r, ok := s.renameAll.Get(a.Var.Name); ok {
			a = r
			continue
		}
		if !value {
			return a
		}
		r, ok := s.renameIn.Get(a.Var.Name)
		if !ok {
			return a
		}
		a = r
	}
	return a
}

func (s *state) valueRename(v ic.Var) (ic.Arg, bool) {
	r := s.resolve(ic.VarArg(v), true)
	return r, !r.Equal(ic.VarArg(v))
}

func (s *state) refRename(v ic.Var) (ic.Arg, bool) {
	r := s.resolve(ic.VarArg(v), false)
	return r, !r.Equal(ic.VarArg(v))
}

func (s *state) outputRename(v ic.Var) (ic.Var, bool) {
	r := s.resolve(ic.VarArg(v), false)
	if !r.IsVar() || r.Var.Same(v) {
		return v, false
	}
	return r.Var, true
}

// closedNames lists every closed name visible from s.
func (s *state) closedNames() []string {
	names := s.closed.Items()
	slices.Sort(names)
	return names
}
