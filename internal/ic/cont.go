package ic

import (
	"errors"
	"fmt"
	"strings"
)

// ContKind tags a Continuation.
type ContKind uint8

// Continuation kinds.
const (
	ContIf ContKind = iota
	ContSwitch
	ContForeach
	ContRange
	ContLoop
	ContWait
	ContNested
	ContAsyncExec
)

var contKindNames = []string{"if", "switch", "foreach", "range", "loop", "wait", "nested", "async_exec"}

func (k ContKind) String() string { return enumString(contKindNames, uint8(k)) }

func (k ContKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ContKind) UnmarshalText(b []byte) error {
	v, err := parseEnum[ContKind]("continuation kind", contKindNames, string(b))
	*k = v
	return err
}

// Continuation is a control-flow node owning child Blocks. Exactly one
// payload field, selected by Kind, is meaningful.
type Continuation struct {
	Kind ContKind `msgpack:"kind" json:"kind"`
	// PassedIn lists outer Vars the children use. Only kept for kinds that
	// do not capture automatically.
	PassedIn []Var `msgpack:"passed_in,omitempty" json:"passed_in,omitempty"`

	If      IfCont        `msgpack:"if,omitempty" json:"if,omitzero"`
	Switch  SwitchCont    `msgpack:"switch,omitempty" json:"switch,omitzero"`
	Foreach ForeachCont   `msgpack:"foreach,omitempty" json:"foreach,omitzero"`
	Range   RangeCont     `msgpack:"range,omitempty" json:"range,omitzero"`
	Loop    LoopCont      `msgpack:"loop,omitempty" json:"loop,omitzero"`
	Wait    WaitCont      `msgpack:"wait,omitempty" json:"wait,omitzero"`
	Nested  NestedCont    `msgpack:"nested,omitempty" json:"nested,omitzero"`
	Async   AsyncExecCont `msgpack:"async,omitempty" json:"async,omitzero"`
}

// IfCont runs Then when Cond is true or non-zero, else Else if present.
type IfCont struct {
	Cond Arg    `msgpack:"cond" json:"cond"`
	Then *Block `msgpack:"then" json:"then"`
	Else *Block `msgpack:"else,omitempty" json:"else,omitempty"`
}

// SwitchCont runs the case whose label equals Selector, else Default.
// Labels and Cases are parallel.
type SwitchCont struct {
	Selector Arg      `msgpack:"selector" json:"selector"`
	Labels   []int64  `msgpack:"labels" json:"labels"`
	Cases    []*Block `msgpack:"cases" json:"cases"`
	Default  *Block   `msgpack:"default,omitempty" json:"default,omitempty"`
}

// LoopSettings are the scheduling knobs shared by counted loops.
type LoopSettings struct {
	Unroll int  `msgpack:"unroll,omitempty" json:"unroll,omitempty"`
	Split  int  `msgpack:"split,omitempty" json:"split,omitempty"`
	Sync   bool `msgpack:"sync,omitempty" json:"sync,omitempty"`
}

// ForeachCont runs Body once per member of Container, binding Member and,
// if set, Counter.
type ForeachCont struct {
	Container Var          `msgpack:"container" json:"container"`
	Member    Var          `msgpack:"member" json:"member"`
	Counter   Var          `msgpack:"counter,omitempty" json:"counter,omitzero"`
	Settings  LoopSettings `msgpack:"settings" json:"settings"`
	// ContainerClosed is set once the container is known closed on entry.
	ContainerClosed bool   `msgpack:"container_closed,omitempty" json:"container_closed,omitempty"`
	Body            *Block `msgpack:"body" json:"body"`
}

// RangeCont runs Body for LoopVar from Start to End inclusive by Step.
type RangeCont struct {
	LoopVar  Var          `msgpack:"loop_var" json:"loop_var"`
	Start    Arg          `msgpack:"start" json:"start"`
	End      Arg          `msgpack:"end" json:"end"`
	Step     Arg          `msgpack:"step" json:"step"`
	Settings LoopSettings `msgpack:"settings" json:"settings"`
	Body     *Block       `msgpack:"body" json:"body"`
}

// LoopCont is a general loop. LoopVars[0] is the condition; the body
// re-enters with loop_continue or leaves with loop_break.
type LoopCont struct {
	Name     string `msgpack:"name" json:"name"`
	LoopVars []Var  `msgpack:"loop_vars" json:"loop_vars"`
	InitVals []Arg  `msgpack:"init_vals" json:"init_vals"`
	// Blocking marks loop vars that must be closed before each iteration.
	Blocking []bool `msgpack:"blocking" json:"blocking"`
	Body     *Block `msgpack:"body" json:"body"`
}

// WaitMode tells whether a WAIT only synchronizes or also spawns a task.
type WaitMode uint8

// Wait modes.
const (
	WaitOnly WaitMode = iota
	WaitTaskDispatch
)

var waitModeNames = []string{"wait_only", "task_dispatch"}

func (m WaitMode) String() string { return enumString(waitModeNames, uint8(m)) }

func (m WaitMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *WaitMode) UnmarshalText(b []byte) error {
	v, err := parseEnum[WaitMode]("wait mode", waitModeNames, string(b))
	*m = v
	return err
}

// WaitCont runs Body once every WaitVar is closed.
type WaitCont struct {
	Name     string   `msgpack:"name" json:"name"`
	WaitVars []Var    `msgpack:"wait_vars" json:"wait_vars"`
	Explicit bool     `msgpack:"explicit,omitempty" json:"explicit,omitempty"`
	Mode     WaitMode `msgpack:"mode" json:"mode"`
	Body     *Block   `msgpack:"body" json:"body"`
}

// NestedCont is a plain lexical block.
type NestedCont struct {
	Body *Block `msgpack:"body" json:"body"`
}

// AsyncExecCont hands Args to an external executor; Results are closed when
// it completes and Body runs afterwards.
type AsyncExecCont struct {
	Executor string `msgpack:"executor" json:"executor"`
	Command  string `msgpack:"command" json:"command"`
	Args     []Arg  `msgpack:"args" json:"args"`
	Results  []Var  `msgpack:"results" json:"results"`
	Body     *Block `msgpack:"body" json:"body"`
}

// NewIf builds an IF. A nil then becomes an empty block.
func NewIf(cond Arg, then, els *Block) *Continuation {
	if then == nil {
		then = NewBlock(BlockThen)
	}
	return &Continuation{Kind: ContIf, If: IfCont{Cond: cond, Then: then, Else: els}}
}

// NewSwitch builds a SWITCH; labels and cases must be parallel.
func NewSwitch(sel Arg, labels []int64, cases []*Block, def *Block) *Continuation {
	return &Continuation{Kind: ContSwitch, Switch: SwitchCont{Selector: sel, Labels: labels, Cases: cases, Default: def}}
}

// NewForeach builds a FOREACH; a zero counter means none.
func NewForeach(container, member, counter Var, s LoopSettings, body *Block) *Continuation {
	return &Continuation{Kind: ContForeach, Foreach: ForeachCont{
		Container: container, Member: member, Counter: counter, Settings: s, Body: body,
	}}
}

// NewRange builds a RANGE loop.
func NewRange(loopVar Var, start, end, step Arg, s LoopSettings, body *Block) *Continuation {
	return &Continuation{Kind: ContRange, Range: RangeCont{
		LoopVar: loopVar, Start: start, End: end, Step: step, Settings: s, Body: body,
	}}
}

// NewLoop builds a LOOP; loopVars[0] is the condition.
func NewLoop(name string, loopVars []Var, init []Arg, blocking []bool, body *Block) *Continuation {
	return &Continuation{Kind: ContLoop, Loop: LoopCont{
		Name: name, LoopVars: loopVars, InitVals: init, Blocking: blocking, Body: body,
	}}
}

// NewWait builds a WAIT on waitVars.
func NewWait(name string, waitVars []Var, mode WaitMode, body *Block) *Continuation {
	return &Continuation{Kind: ContWait, Wait: WaitCont{Name: name, WaitVars: waitVars, Mode: mode, Body: body}}
}

// NewNested wraps body in a NESTED block.
func NewNested(body *Block) *Continuation {
	return &Continuation{Kind: ContNested, Nested: NestedCont{Body: body}}
}

// NewAsyncExec builds an ASYNC_EXEC.
func NewAsyncExec(executor, command string, args []Arg, results []Var, body *Block) *Continuation {
	return &Continuation{Kind: ContAsyncExec, Async: AsyncExecCont{
		Executor: executor, Command: command, Args: args, Results: results, Body: body,
	}}
}

// CheckShape reports payloads the kind does not accept: null selectors
// or bounds, missing blocks, mismatched parallel lists.
func (c *Continuation) CheckShape() error {
	switch c.Kind {
	case ContIf:
		if c.If.Cond.Kind == ArgNone {
			return errors.New("null condition")
		}
		if c.If.Then == nil {
			return errors.New("missing then block")
		}
		return nil
	case ContSwitch:
		if c.Switch.Selector.Kind == ArgNone {
			return errors.New("null selector")
		}
		if len(c.Switch.Labels) != len(c.Switch.Cases) {
			return fmt.Errorf("%d labels for %d cases", len(c.Switch.Labels), len(c.Switch.Cases))
		}
		for i, b := range c.Switch.Cases {
			if b == nil {
				return fmt.Errorf("case %d has no block", i)
			}
		}
		return nil
	case ContRange:
		if c.Range.Start.Kind == ArgNone || c.Range.End.Kind == ArgNone || c.Range.Step.Kind == ArgNone {
			return errors.New("null range bound")
		}
	case ContLoop:
		if len(c.Loop.LoopVars) == 0 || len(c.Loop.InitVals) != len(c.Loop.LoopVars) {
			return errors.New("loop vars and initial values do not match")
		}
	case ContForeach, ContWait, ContNested, ContAsyncExec:
	default:
		return fmt.Errorf("unknown continuation kind %d", uint8(c.Kind))
	}
	if len(c.Blocks()) == 0 {
		return errors.New("missing body")
	}
	return nil
}

// Blocks returns the child blocks, skipping absent ones.
func (c *Continuation) Blocks() []*Block {
	var out []*Block
	add := func(b *Block) {
		if b != nil {
			out = append(out, b)
		}
	}
	switch c.Kind {
	case ContIf:
		add(c.If.Then)
		add(c.If.Else)
	case ContSwitch:
		for _, b := range c.Switch.Cases {
			add(b)
		}
		add(c.Switch.Default)
	case ContForeach:
		add(c.Foreach.Body)
	case ContRange:
		add(c.Range.Body)
	case ContLoop:
		add(c.Loop.Body)
	case ContWait:
		add(c.Wait.Body)
	case ContNested:
		add(c.Nested.Body)
	case ContAsyncExec:
		add(c.Async.Body)
	}
	return out
}

// PassesAutomatically reports whether the children run in the enclosing
// task and see its Vars without a PassedIn list.
func (c *Continuation) PassesAutomatically() bool {
	switch c.Kind {
	case ContIf, ContSwitch, ContNested:
		return true
	}
	return false
}

// headerArgs returns pointers to every operand the continuation itself
// reads in the enclosing scope.
func (c *Continuation) headerArgs() []*Arg {
	var out []*Arg
	switch c.Kind {
	case ContIf:
		out = append(out, &c.If.Cond)
	case ContSwitch:
		out = append(out, &c.Switch.Selector)
	case ContRange:
		out = append(out, &c.Range.Start, &c.Range.End, &c.Range.Step)
	case ContLoop:
		for i := range c.Loop.InitVals {
			out = append(out, &c.Loop.InitVals[i])
		}
	case ContAsyncExec:
		for i := range c.Async.Args {
			out = append(out, &c.Async.Args[i])
		}
	}
	return out
}

// RequiredVars returns the Vars the continuation header reads from the
// enclosing scope.
func (c *Continuation) RequiredVars() []Var {
	var out []Var
	for _, a := range c.headerArgs() {
		if a.IsVar() {
			out = append(out, a.Var)
		}
	}
	switch c.Kind {
	case ContForeach:
		out = append(out, c.Foreach.Container)
	case ContWait:
		out = append(out, c.Wait.WaitVars...)
	case ContAsyncExec:
		out = append(out, c.Async.Results...)
	}
	return out
}

// ConstructedVars returns the Vars the continuation defines for its body.
func (c *Continuation) ConstructedVars() []Var {
	switch c.Kind {
	case ContForeach:
		out := []Var{c.Foreach.Member}
		if !c.Foreach.Counter.IsZero() {
			out = append(out, c.Foreach.Counter)
		}
		return out
	case ContRange:
		return []Var{c.Range.LoopVar}
	case ContLoop:
		return append([]Var(nil), c.Loop.LoopVars...)
	}
	return nil
}

// EntryClosedVars returns the Vars guaranteed closed when a child starts.
func (c *Continuation) EntryClosedVars() []Var {
	switch c.Kind {
	case ContWait:
		return append([]Var(nil), c.Wait.WaitVars...)
	case ContLoop:
		var out []Var
		for i, v := range c.Loop.LoopVars {
			if i == 0 || (i < len(c.Loop.Blocking) && c.Loop.Blocking[i]) {
				out = append(out, v)
			}
		}
		return out
	case ContAsyncExec:
		return append([]Var(nil), c.Async.Results...)
	}
	return nil
}

// Guards returns the outer Vars that must be closed before the
// continuation's body can run, or nil if it runs unconditionally.
func (c *Continuation) Guards() []Var {
	switch c.Kind {
	case ContWait:
		return append([]Var(nil), c.Wait.WaitVars...)
	case ContLoop:
		var out []Var
		for i, a := range c.Loop.InitVals {
			if !a.IsVar() {
				continue
			}
			if i == 0 || (i < len(c.Loop.Blocking) && c.Loop.Blocking[i]) {
				out = append(out, a.Var)
			}
		}
		return out
	}
	return nil
}

// RenameHeader rewrites Var operands the header reads. Wait vars replaced
// by a literal are dropped since waiting on a constant is a no-op. Returns
// the number of operands changed.
func (c *Continuation) RenameHeader(fn func(Var) (Arg, bool)) int {
	n := 0
	for _, a := range c.headerArgs() {
		if !a.IsVar() {
			continue
		}
		if repl, ok := fn(a.Var); ok && repl.Kind != ArgNone && !repl.Equal(*a) {
			*a = repl
			n++
		}
	}
	renameVar := func(v *Var) {
		if repl, ok := fn(*v); ok && repl.IsVar() && !repl.Var.Same(*v) {
			*v = repl.Var
			n++
		}
	}
	switch c.Kind {
	case ContForeach:
		renameVar(&c.Foreach.Container)
	case ContWait:
		kept := c.Wait.WaitVars[:0]
		seen := map[string]bool{}
		for _, v := range c.Wait.WaitVars {
			repl, ok := fn(v)
			switch {
			case ok && repl.IsConst():
				n++
				continue
			case ok && repl.IsVar() && !repl.Var.Same(v):
				v = repl.Var
				n++
			}
			if seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			kept = append(kept, v)
		}
		c.Wait.WaitVars = kept
	case ContAsyncExec:
		for i := range c.Async.Results {
			renameVar(&c.Async.Results[i])
		}
	}
	return n
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Inline, when non-nil, replaces the continuation in its parent. An
	// empty block removes the continuation.
	Inline *Block
	// Changed is set when the continuation was rewritten in place.
	Changed bool
}

// Resolve checks whether the continuation's selection is already decided
// given which Vars are closed, and simplifies it.
func (c *Continuation) Resolve(closed func(Var) bool) Resolution {
	switch c.Kind {
	case ContIf:
		truth, ok := c.If.Cond.Truth()
		if !ok {
			return Resolution{}
		}
		if truth {
			return Resolution{Inline: c.If.Then}
		}
		if c.If.Else == nil {
			return Resolution{Inline: NewBlock(BlockElse)}
		}
		return Resolution{Inline: c.If.Else}
	case ContSwitch:
		if c.Switch.Selector.Kind != ArgInt {
			return Resolution{}
		}
		for i, l := range c.Switch.Labels {
			if l == c.Switch.Selector.Int && i < len(c.Switch.Cases) {
				return Resolution{Inline: orEmpty(c.Switch.Cases[i], BlockCase)}
			}
		}
		return Resolution{Inline: orEmpty(c.Switch.Default, BlockCase)}
	case ContWait:
		var res Resolution
		kept := c.Wait.WaitVars[:0]
		for _, v := range c.Wait.WaitVars {
			if closed(v) {
				res.Changed = true
				continue
			}
			kept = append(kept, v)
		}
		c.Wait.WaitVars = kept
		if len(kept) == 0 && c.Wait.Mode == WaitOnly {
			res.Inline = c.Wait.Body
		}
		return res
	case ContRange:
		return c.resolveRange()
	case ContNested:
		return Resolution{Inline: c.Nested.Body}
	case ContForeach:
		if !c.Foreach.ContainerClosed && closed(c.Foreach.Container) {
			c.Foreach.ContainerClosed = true
			return Resolution{Changed: true}
		}
	}
	return Resolution{}
}

func (c *Continuation) resolveRange() Resolution {
	r := &c.Range
	if r.Start.Kind != ArgInt || r.End.Kind != ArgInt || r.Step.Kind != ArgInt || r.Step.Int <= 0 {
		return Resolution{}
	}
	if r.End.Int < r.Start.Int {
		return Resolution{Inline: NewBlock(BlockLoopBody)}
	}
	if r.Start.Int+r.Step.Int <= r.End.Int {
		return Resolution{}
	}
	body := orEmpty(r.Body, BlockLoopBody)
	body.Declare(r.LoopVar)
	body.Stmts = append([]Statement{
		InstrStmt(NewLocalOp(CopyOpFor(r.LoopVar.Type.Prim), r.LoopVar, r.Start)),
	}, body.Stmts...)
	return Resolution{Inline: body}
}

func orEmpty(b *Block, kind BlockKind) *Block {
	if b == nil {
		return NewBlock(kind)
	}
	return b
}

// Header renders the continuation without its children.
func (c *Continuation) Header() string {
	var s string
	switch c.Kind {
	case ContIf:
		s = fmt.Sprintf("if (%s)", c.If.Cond)
	case ContSwitch:
		s = fmt.Sprintf("switch (%s)", c.Switch.Selector)
	case ContForeach:
		s = fmt.Sprintf("foreach %s in %s", c.Foreach.Member, c.Foreach.Container)
		if !c.Foreach.Counter.IsZero() {
			s += fmt.Sprintf(" at %s", c.Foreach.Counter)
		}
		s += c.Foreach.Settings.String()
		if c.Foreach.ContainerClosed {
			s += " closed"
		}
	case ContRange:
		s = fmt.Sprintf("range %s = %s to %s by %s%s", c.Range.LoopVar, c.Range.Start, c.Range.End, c.Range.Step, c.Range.Settings)
	case ContLoop:
		parts := make([]string, len(c.Loop.LoopVars))
		for i, v := range c.Loop.LoopVars {
			init := "?"
			if i < len(c.Loop.InitVals) {
				init = c.Loop.InitVals[i].String()
			}
			parts[i] = v.Name + "=" + init
			if i < len(c.Loop.Blocking) && c.Loop.Blocking[i] {
				parts[i] += "!"
			}
		}
		s = fmt.Sprintf("loop %s (%s)", c.Loop.Name, strings.Join(parts, ", "))
	case ContWait:
		s = fmt.Sprintf("wait %s (%s) %s", c.Wait.Name, joinVars(c.Wait.WaitVars), c.Wait.Mode)
		if c.Wait.Explicit {
			s += " explicit"
		}
	case ContNested:
		s = "block"
	case ContAsyncExec:
		args := make([]string, len(c.Async.Args))
		for i, a := range c.Async.Args {
			args[i] = a.String()
		}
		s = fmt.Sprintf("async_exec %s %q (%s) -> (%s)", c.Async.Executor, c.Async.Command, strings.Join(args, ", "), joinVars(c.Async.Results))
	default:
		s = c.Kind.String()
	}
	if len(c.PassedIn) > 0 {
		s += " passin(" + joinVars(c.PassedIn) + ")"
	}
	return s
}

func (s LoopSettings) String() string {
	var parts []string
	if s.Unroll > 1 {
		parts = append(parts, fmt.Sprintf("unroll=%d", s.Unroll))
	}
	if s.Split > 0 {
		parts = append(parts, fmt.Sprintf("split=%d", s.Split))
	}
	if s.Sync {
		parts = append(parts, "sync")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, " ") + "]"
}

func joinVars(vs []Var) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}
