package ic

import "fmt"

// Namer hands out Var names that are unused in a Program.
type Namer struct {
	used map[string]struct{}
}

// NewNamer reserves every name already present in p.
func NewNamer(p *Program) *Namer {
	n := &Namer{used: make(map[string]struct{})}
	if p == nil {
		return n
	}
	for _, g := range p.Globals {
		n.Reserve(g.Var.Name)
	}
	for _, f := range p.Funcs {
		if f == nil {
			continue
		}
		for _, v := range f.Inputs {
			n.Reserve(v.Name)
		}
		for _, v := range f.Outputs {
			n.Reserve(v.Name)
		}
		f.Body.Walk(func(b *Block) bool {
			for _, v := range b.Vars {
				n.Reserve(v.Name)
			}
			for _, st := range b.Stmts {
				if st.Kind == StmtCont {
					for _, v := range st.Cont.ConstructedVars() {
						n.Reserve(v.Name)
					}
				}
			}
			return true
		})
	}
	return n
}

// Reserve marks name as taken.
func (n *Namer) Reserve(name string) {
	n.used[name] = struct{}{}
}

// Fresh returns base, or base with a numeric suffix, never returned before.
func (n *Namer) Fresh(base string) string {
	name := base
	for i := 1; ; i++ {
		if _, taken := n.used[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s:%d", base, i)
	}
	n.Reserve(name)
	return name
}

// FreshVar is a FreshFunc.
func (n *Namer) FreshVar(base string, t Type, k VarKind) Var {
	return Var{Name: n.Fresh(base), Type: t, Kind: k}
}
