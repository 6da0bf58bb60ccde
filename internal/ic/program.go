package ic

import "slices"

// Function is one IC function.
type Function struct {
	Name    string `msgpack:"name" json:"name"`
	Inputs  []Var  `msgpack:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []Var  `msgpack:"outputs,omitempty" json:"outputs,omitempty"`
	Async   bool   `msgpack:"async,omitempty" json:"async,omitempty"`
	Body    *Block `msgpack:"body" json:"body"`
	// BlockingInputs are inputs the caller must close before dispatch.
	BlockingInputs []Var `msgpack:"blocking_inputs,omitempty" json:"blocking_inputs,omitempty"`
}

// IsInput reports whether name is one of f's inputs.
func (f *Function) IsInput(name string) bool {
	return slices.ContainsFunc(f.Inputs, func(v Var) bool { return v.Name == name })
}

// IsBlockingInput reports whether name is in f.BlockingInputs.
func (f *Function) IsBlockingInput(name string) bool {
	return slices.ContainsFunc(f.BlockingInputs, func(v Var) bool { return v.Name == name })
}

// GlobalConst binds a program-wide constant.
type GlobalConst struct {
	Var   Var `msgpack:"var" json:"var"`
	Value Arg `msgpack:"value" json:"value"`
}

// StructField is one named, typed field of a struct.
type StructField struct {
	Name string `msgpack:"name" json:"name"`
	Type Type   `msgpack:"type" json:"type"`
}

// StructDecl declares a struct type.
type StructDecl struct {
	Name   string        `msgpack:"name" json:"name"`
	Fields []StructField `msgpack:"fields" json:"fields"`
}

// Program is the unit the optimizer transforms.
type Program struct {
	Funcs   []*Function   `msgpack:"funcs" json:"funcs"`
	Globals []GlobalConst `msgpack:"globals,omitempty" json:"globals,omitempty"`
	Structs []StructDecl  `msgpack:"structs,omitempty" json:"structs,omitempty"`
}

// Func returns the function called name, or nil.
func (p *Program) Func(name string) *Function {
	for _, f := range p.Funcs {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// AddGlobal declares a constant and returns its Var.
func (p *Program) AddGlobal(name string, value Arg) Var {
	v := Var{Name: name, Type: FutureType(value.Prim()), Kind: VarGlobalConst}
	p.Globals = append(p.Globals, GlobalConst{Var: v, Value: value})
	return v
}
