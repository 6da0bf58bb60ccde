package icfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"weft/internal/ic"
)

func sampleProgram() *ic.Program {
	intF := ic.FutureType(ic.PrimInt)
	x := ic.Var{Name: "x", Type: intF}
	o := ic.Var{Name: "o", Type: intF}
	arr := ic.Var{Name: "arr", Type: ic.ArrayType(ic.PrimInt)}
	v := ic.Var{Name: "v", Type: ic.ValueType(ic.PrimInt), Kind: ic.VarValue}
	m := ic.Var{Name: "m", Type: intF, Kind: ic.VarAlias}
	i := ic.Var{Name: "i", Type: ic.ValueType(ic.PrimInt), Kind: ic.VarValue}

	waitBody := ic.NewBlock(ic.BlockWaitBody,
		ic.InstrStmt(ic.NewLoad(v, x)),
		ic.InstrStmt(ic.NewStore(o, ic.VarArg(v))),
	)
	waitBody.Declare(v)
	w := ic.NewWait("w", []ic.Var{x}, ic.WaitOnly, waitBody)
	w.PassedIn = []ic.Var{x, o}

	loop := ic.NewForeach(arr, m, ic.Var{}, ic.LoopSettings{Split: 8}, ic.NewBlock(ic.BlockLoopBody,
		ic.InstrStmt(ic.NewComment("member")),
	))
	rng := ic.NewRange(i, ic.IntArg(0), ic.IntArg(9), ic.IntArg(1), ic.LoopSettings{Unroll: 2}, ic.NewBlock(ic.BlockLoopBody))
	sw := ic.NewSwitch(ic.IntArg(2), []int64{1, 2}, []*ic.Block{ic.NewBlock(ic.BlockCase), ic.NewBlock(ic.BlockCase)}, nil)

	p := &ic.Program{Funcs: []*ic.Function{{
		Name: "main", Inputs: []ic.Var{x, arr}, Outputs: []ic.Var{o}, Async: true,
		BlockingInputs: []ic.Var{arr},
		Body: ic.NewBlock(ic.BlockMain,
			ic.ContStmt(w),
			ic.ContStmt(loop),
			ic.ContStmt(rng),
			ic.ContStmt(sw),
			ic.ContStmt(ic.NewIf(ic.BoolArg(true), nil, nil)),
			ic.InstrStmt(ic.NewLocalOp("strcat", ic.Var{}, ic.StringArg("a"), ic.FloatArg(1.5))),
		),
	}}}
	p.AddGlobal("G", ic.IntArg(7))
	p.Structs = []ic.StructDecl{{Name: "pair", Fields: []ic.StructField{{Name: "a", Type: intF}}}}
	return p
}

func dump(t *testing.T, p *ic.Program) string {
	t.Helper()
	var buf bytes.Buffer
	if err := ic.Dump(&buf, p, ic.DumpOptions{}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	return buf.String()
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatBinary, FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			p := sampleProgram()
			var buf bytes.Buffer
			if err := Encode(&buf, p, format); err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(&buf, format)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if want, have := dump(t, p), dump(t, got); want != have {
				t.Fatalf("round trip changed the program:\nwant:\n%s\nhave:\n%s", want, have)
			}
			if err := ic.Validate(got); err != nil {
				t.Fatalf("decoded program does not validate: %v", err)
			}
			if got.Funcs[0].Body.Stmts[1].Cont.Foreach.Settings.Split != 8 {
				t.Errorf("loop settings lost: %+v", got.Funcs[0].Body.Stmts[1].Cont.Foreach.Settings)
			}
		})
	}
}

func TestJSONUsesNames(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleProgram(), FormatJSON); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"schema": 1`, `"kind": "wait"`, `"mode": "wait_only"`, `"op": "load_int"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("JSON output missing %s", want)
		}
	}
}

func TestDecodeRejectsForeignSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(envelope{Schema: SchemaVersion + 1, Program: &ic.Program{}}); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(&buf, FormatBinary)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestDecodeReportsMalformedFunctions(t *testing.T) {
	p := &ic.Program{Funcs: []*ic.Function{{Name: "f"}}}
	var buf bytes.Buffer
	if err := Encode(&buf, p, FormatJSON); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(&buf, FormatJSON)
	var defect *ic.DefectError
	if !errors.As(err, &defect) {
		t.Fatalf("expected a defect, got %v", err)
	}
	if defect.Func != "f" {
		t.Errorf("defect names %q, want f", defect.Func)
	}
}

func TestDecodeReportsMalformedStatements(t *testing.T) {
	v := ic.Var{Name: "v", Type: ic.ValueType(ic.PrimInt), Kind: ic.VarValue}
	cases := map[string]*ic.Statement{
		"if without then": {Kind: ic.StmtCont, Cont: &ic.Continuation{Kind: ic.ContIf, If: ic.IfCont{Cond: ic.BoolArg(true)}}},
		"load without source": {Kind: ic.StmtInstr, Instr: &ic.Instr{Op: ic.OpLoadInt, Outputs: []ic.Var{v}}},
	}
	for name, st := range cases {
		p := &ic.Program{Funcs: []*ic.Function{{Name: "f", Body: ic.NewBlock(ic.BlockMain, *st)}}}
		var buf bytes.Buffer
		if err := Encode(&buf, p, FormatBinary); err != nil {
			t.Fatalf("%s: encode: %v", name, err)
		}
		_, err := Decode(&buf, FormatBinary)
		var defect *ic.DefectError
		if !errors.As(err, &defect) {
			t.Fatalf("%s: expected a defect, got %v", name, err)
		}
		if defect.Func != "f" {
			t.Errorf("%s: defect names %q, want f", name, defect.Func)
		}
	}
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"prog.icpk", "prog.json"} {
		path := filepath.Join(dir, name)
		p := sampleProgram()
		if err := Write(path, p); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		got, err := Read(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if dump(t, p) != dump(t, got) {
			t.Errorf("%s: program changed on disk", name)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected only the two programs, found %d entries", len(entries))
	}
}

func TestFormatFor(t *testing.T) {
	if f, err := FormatFor("a/b.ICPK"); err != nil || f != FormatBinary {
		t.Errorf("FormatFor(.ICPK) = %v, %v", f, err)
	}
	if _, err := FormatFor("prog.txt"); err == nil {
		t.Error("expected an error for .txt")
	}
	if err := Write(filepath.Join(t.TempDir(), "prog.txt"), &ic.Program{}); err == nil {
		t.Error("Write accepted an unknown extension")
	}
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("dir/prog.icpk"); got != "dir/prog.opt.icpk" {
		t.Errorf("OutputPath = %q", got)
	}
}
