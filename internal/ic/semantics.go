package ic

// BlockingInputs returns the inputs whose closedness gates the closedness of
// the instruction's future outputs.
func (in *Instr) BlockingInputs() []Var {
	switch in.Op {
	case OpAsyncOp, OpCall:
		return openVars(in.Inputs)
	case OpCopyRef:
		if in.Inputs[0].IsVar() {
			return []Var{in.Inputs[0].Var}
		}
	case OpArrayLookupFuture:
		return openVars(in.Inputs[1:2])
	case OpArrayInsertFuture:
		return openVars(in.Inputs[:1])
	}
	return nil
}

func openVars(args []Arg) []Var {
	var out []Var
	for _, a := range args {
		if a.IsVar() && !a.Var.AlwaysClosed() {
			out = append(out, a.Var)
		}
	}
	return out
}

// ComputedValues returns the facts the instruction establishes. known
// resolves facts recorded earlier; it may be nil.
func (in *Instr) ComputedValues(known func(ComputedValue) (Arg, bool)) []ComputedValue {
	if known == nil {
		known = func(ComputedValue) (Arg, bool) { return Arg{}, false }
	}
	switch {
	case in.Op == OpLoadRef:
		ref := in.Inputs[0].Var
		dst := in.Outputs[0]
		return []ComputedValue{
			RetrieveCV(ref, VarArg(dst)),
			{Op: OpAddressOf, Inputs: []Arg{VarArg(dst)}, Loc: VarArg(ref), Closed: true},
		}
	case in.Op.IsLoad():
		src := in.Inputs[0].Var
		dst := in.Outputs[0]
		return []ComputedValue{
			RetrieveCV(src, VarArg(dst)),
			AssignCV(VarArg(dst), src),
		}
	case in.Op.IsStore():
		dst := in.Outputs[0]
		return []ComputedValue{
			AssignCV(in.Inputs[0], dst),
			RetrieveCV(dst, in.Inputs[0]),
		}
	case in.Op == OpAddressOf:
		ref := in.Outputs[0]
		return []ComputedValue{
			{Op: OpAddressOf, Inputs: []Arg{in.Inputs[0]}, Loc: VarArg(ref), Closed: true},
			RetrieveCV(ref, in.Inputs[0]),
		}
	case in.Op == OpCopyRef:
		return []ComputedValue{CopyCV(in.Inputs[0], in.Outputs[0], EquivReference)}
	case in.Op == OpLocalOp || in.Op == OpAsyncOp:
		return in.operatorValues()
	case in.Op == OpStructInsert:
		return []ComputedValue{{
			Op: OpStructLookup, Subop: in.Subop,
			Inputs: []Arg{VarArg(in.Outputs[0])}, Loc: in.Inputs[0], Equiv: EquivReference,
		}}
	case in.Op == OpStructLookup:
		return []ComputedValue{{
			Op: OpStructLookup, Subop: in.Subop,
			Inputs: []Arg{in.Inputs[0]}, Loc: VarArg(in.Outputs[0]), Equiv: EquivReference,
		}}
	case in.Op == OpArrayInsertImm || in.Op == OpArrayInsertFuture:
		return []ComputedValue{ArrayContentsCV(in.Outputs[0], in.Inputs[0], in.Inputs[1])}
	case in.Op == OpArrayLookupImm:
		return []ComputedValue{ArrayContentsCV(in.Inputs[0].Var, in.Inputs[1], VarArg(in.Outputs[0]))}
	case in.Op == OpArrayLookupRefImm || in.Op == OpArrayLookupFuture:
		ref := in.Outputs[0]
		cvs := []ComputedValue{{
			Op: OpFake, Subop: SubopRefToArrayContents,
			Inputs: []Arg{in.Inputs[0], in.Inputs[1]}, Loc: VarArg(ref),
		}}
		if member, ok := known(ArrayContentsCV(in.Inputs[0].Var, in.Inputs[1], Arg{})); ok && member.IsVar() {
			cvs = append(cvs, RetrieveCV(ref, member))
		}
		return cvs
	}
	return nil
}

func (in *Instr) operatorValues() []ComputedValue {
	info, ok := LookupOp(in.Subop)
	if !ok || info.SideEffects || len(in.Outputs) != 1 {
		return nil
	}
	out := in.Outputs[0]
	if info.Copy {
		return []ComputedValue{CopyCV(in.Inputs[0], out, EquivValue)}
	}
	subop, inputs := canonicalOp(in.Subop, in.Inputs)
	return []ComputedValue{{
		Op: in.Op, Subop: subop, Inputs: inputs,
		Loc: VarArg(out), Closed: in.Op == OpLocalOp,
	}}
}

// ImmRequest lists what an instruction needs to run on local values.
type ImmRequest struct {
	// In are futures to fetch into locals, in the order MakeImmediate
	// expects them.
	In []Var
	// Out are future outputs to compute as locals and store afterwards.
	Out []Var
}

// ImmChange is the result of MakeImmediate.
type ImmChange struct {
	Instr *Instr
	// OldOut and NewOut are set when an output's identity changed. Uses of
	// OldOut must be kept valid by the caller.
	OldOut Var
	NewOut Var
}

// FreshFunc creates a new uniquely named Var.
type FreshFunc func(base string, t Type, k VarKind) Var

// ImmediateRequest asks whether the instruction can switch to operating on
// local values given which Vars are closed. It returns nil if not.
func (in *Instr) ImmediateRequest(closed func(Var) bool) *ImmRequest {
	switch in.Op {
	case OpAsyncOp:
		info, ok := LookupOp(in.Subop)
		if !ok || info.SideEffects || len(in.Outputs) != 1 || !in.Outputs[0].Type.IsScalarFuture() {
			return nil
		}
		req := &ImmRequest{Out: []Var{in.Outputs[0]}}
		seen := map[string]bool{}
		for _, a := range in.Inputs {
			if !a.IsVar() || a.Var.Kind == VarValue {
				continue
			}
			if !a.Var.Type.IsScalarFuture() || !closed(a.Var) {
				return nil
			}
			if !seen[a.Var.Name] {
				seen[a.Var.Name] = true
				req.In = append(req.In, a.Var)
			}
		}
		return req
	case OpArrayLookupRefImm:
		if closed(in.Inputs[0].Var) {
			return &ImmRequest{}
		}
	case OpArrayLookupFuture, OpArrayInsertFuture:
		ix := in.Inputs[0]
		if in.Op == OpArrayLookupFuture {
			ix = in.Inputs[1]
		}
		if ix.IsVar() && ix.Var.Type.IsScalarFuture() && closed(ix.Var) {
			return &ImmRequest{In: []Var{ix.Var}}
		}
	}
	return nil
}

// MakeImmediate builds the local-value replacement. inVals align with
// req.In and outVals with req.Out.
func (in *Instr) MakeImmediate(req *ImmRequest, outVals []Var, inVals []Arg, fresh FreshFunc) ImmChange {
	local := func(a Arg) Arg {
		if !a.IsVar() {
			return a
		}
		for i, v := range req.In {
			if v.Same(a.Var) {
				return inVals[i]
			}
		}
		return a
	}
	switch in.Op {
	case OpAsyncOp:
		inputs := make([]Arg, len(in.Inputs))
		for i, a := range in.Inputs {
			inputs[i] = local(a)
		}
		return ImmChange{Instr: NewLocalOp(in.Subop, outVals[0], inputs...)}
	case OpArrayLookupRefImm:
		ref := in.Outputs[0]
		member := fresh(ref.Name, FutureType(ref.Type.Prim), VarAlias)
		return ImmChange{
			Instr:  NewArrayLookupImm(member, in.Inputs[0].Var, in.Inputs[1]),
			OldOut: ref,
			NewOut: member,
		}
	case OpArrayLookupFuture:
		return ImmChange{Instr: NewArrayLookupRefImm(in.Outputs[0], in.Inputs[0].Var, local(in.Inputs[1]))}
	case OpArrayInsertFuture:
		return ImmChange{Instr: NewArrayInsertImm(in.Outputs[0], local(in.Inputs[0]), in.Inputs[1].Var)}
	}
	return ImmChange{Instr: in}
}
