package ic

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// DumpOptions configures Dump.
type DumpOptions struct {
	// Color highlights keywords and continuation headers.
	Color bool
}

type dumper struct {
	w       io.Writer
	keyword func(a ...any) string
	header  func(a ...any) string
	err     error
}

func (d *dumper) printf(indent int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

// Dump writes a human-readable listing of p.
func Dump(w io.Writer, p *Program, opts DumpOptions) error {
	if w == nil || p == nil {
		return nil
	}
	d := &dumper{w: w, keyword: fmt.Sprint, header: fmt.Sprint}
	if opts.Color {
		kw := color.New(color.FgMagenta, color.Bold)
		kw.EnableColor()
		hd := color.New(color.FgCyan)
		hd.EnableColor()
		d.keyword = kw.Sprint
		d.header = hd.Sprint
	}
	for _, s := range p.Structs {
		fields := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = f.Name + " " + f.Type.String()
		}
		d.printf(0, "%s %s { %s }", d.keyword("struct"), s.Name, strings.Join(fields, "; "))
	}
	for _, g := range p.Globals {
		d.printf(0, "%s %s %s = %s", d.keyword("const"), g.Var.Type, g.Var.Name, g.Value)
	}
	for _, f := range p.Funcs {
		if f != nil {
			d.function(f)
		}
	}
	return d.err
}

// DumpFunction writes one function.
func DumpFunction(w io.Writer, f *Function) error {
	d := &dumper{w: w, keyword: fmt.Sprint, header: fmt.Sprint}
	d.function(f)
	return d.err
}

func (d *dumper) function(f *Function) {
	sig := fmt.Sprintf("%s %s(%s) -> (%s)", d.keyword("func"), f.Name, declList(f.Inputs), declList(f.Outputs))
	if f.Async {
		sig += " async"
	}
	if len(f.BlockingInputs) > 0 {
		sig += " blocking(" + joinVars(f.BlockingInputs) + ")"
	}
	d.printf(0, "%s {", sig)
	d.block(1, f.Body)
	d.printf(0, "}")
}

func (d *dumper) block(indent int, b *Block) {
	if b == nil {
		return
	}
	for _, v := range b.Vars {
		d.printf(indent, "%s %s %s", d.keyword("decl"), v.Type, varDecl(v))
	}
	for _, st := range b.Stmts {
		if st.Kind == StmtInstr {
			d.printf(indent, "%s", st.Instr)
			continue
		}
		d.cont(indent, st.Cont)
	}
}

func (d *dumper) cont(indent int, c *Continuation) {
	d.printf(indent, "%s {", d.header(c.Header()))
	switch c.Kind {
	case ContIf:
		d.block(indent+1, c.If.Then)
		if c.If.Else != nil {
			d.printf(indent, "} %s {", d.keyword("else"))
			d.block(indent+1, c.If.Else)
		}
	case ContSwitch:
		for i, b := range c.Switch.Cases {
			label := "?"
			if i < len(c.Switch.Labels) {
				label = fmt.Sprint(c.Switch.Labels[i])
			}
			d.printf(indent, "%s %s:", d.keyword("case"), label)
			d.block(indent+1, b)
		}
		if c.Switch.Default != nil {
			d.printf(indent, "%s:", d.keyword("default"))
			d.block(indent+1, c.Switch.Default)
		}
	default:
		for _, b := range c.Blocks() {
			d.block(indent+1, b)
		}
	}
	d.printf(indent, "}")
}

func varDecl(v Var) string {
	if v.Kind == VarFuture || v.Kind == VarValue {
		return v.Name
	}
	return v.Name + " (" + v.Kind.String() + ")"
}

func declList(vs []Var) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Type.String() + " " + v.Name
	}
	return strings.Join(parts, ", ")
}
