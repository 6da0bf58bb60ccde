// Package icfile reads and writes IC programs. Binary files (.icpk) are
// msgpack; .json files hold the same envelope as indented JSON.
package icfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"weft/internal/ic"
)

// SchemaVersion is bumped whenever the encoded layout of ic.Program changes.
const SchemaVersion uint16 = 1

// ErrSchema is returned for files written with a different SchemaVersion.
var ErrSchema = errors.New("unsupported schema version")

// Format selects the encoding.
type Format uint8

const (
	FormatBinary Format = iota
	FormatJSON
)

// Extensions recognized by FormatFor.
const (
	ExtBinary = ".icpk"
	ExtJSON   = ".json"
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "msgpack"
}

// FormatFor picks the format from path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtBinary:
		return FormatBinary, nil
	case ExtJSON:
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%s: unknown program format (want %s or %s)", path, ExtBinary, ExtJSON)
	}
}

type envelope struct {
	Schema  uint16      `msgpack:"schema" json:"schema"`
	Program *ic.Program `msgpack:"program" json:"program"`
}

// Encode writes p to w.
func Encode(w io.Writer, p *ic.Program, f Format) error {
	env := envelope{Schema: SchemaVersion, Program: p}
	if f == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(env)
}

// Decode reads a program from r. Besides decoding errors it rejects
// envelopes with a foreign schema, functions missing a name or a body, and
// malformed instructions or continuations; all but the first are reported
// as *ic.DefectError.
func Decode(r io.Reader, f Format) (*ic.Program, error) {
	var env envelope
	var err error
	if f == FormatJSON {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&env)
	} else {
		err = msgpack.NewDecoder(r).Decode(&env)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	if env.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: file has %d, reader supports %d", ErrSchema, env.Schema, SchemaVersion)
	}
	if env.Program == nil {
		return &ic.Program{}, nil
	}
	if err := checkShape(env.Program); err != nil {
		return nil, err
	}
	return env.Program, nil
}

func checkShape(p *ic.Program) error {
	var errs []error
	seen := make(map[string]bool, len(p.Funcs))
	for i, f := range p.Funcs {
		switch {
		case f == nil:
			errs = append(errs, ic.Defectf("", fmt.Sprintf("funcs[%d]", i), "null function"))
		case f.Name == "":
			errs = append(errs, ic.Defectf("", fmt.Sprintf("funcs[%d]", i), "unnamed function"))
		case f.Body == nil:
			errs = append(errs, ic.Defectf(f.Name, "body", "missing body"))
		case seen[f.Name]:
			errs = append(errs, ic.Defectf(f.Name, "", "defined twice"))
		}
		if f != nil {
			seen[f.Name] = true
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return ic.CheckStructure(p)
}

// Read loads the program at path, choosing the format by extension.
func Read(path string) (*ic.Program, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(bufio.NewReader(f), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Write stores p at path, choosing the format by extension. The file is
// replaced atomically.
func Write(path string, p *ic.Program) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".weft-*")
	if err != nil {
		return err
	}
	defer func() {
		if _, statErr := os.Stat(tmp.Name()); statErr == nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, p, format); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// OutputPath derives the default output name for an optimized program:
// prog.icpk becomes prog.opt.icpk.
func OutputPath(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + ".opt" + ext
}
