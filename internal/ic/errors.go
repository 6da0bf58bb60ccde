package ic

import "fmt"

// DefectError reports a compiler-internal invariant violation. It always
// names the function and the offending IC element.
type DefectError struct {
	Func  string
	Where string
	Msg   string
}

func (e *DefectError) Error() string {
	switch {
	case e.Func != "" && e.Where != "":
		return fmt.Sprintf("internal defect in %s at %s: %s", e.Func, e.Where, e.Msg)
	case e.Func != "":
		return fmt.Sprintf("internal defect in %s: %s", e.Func, e.Msg)
	default:
		return "internal defect: " + e.Msg
	}
}

// Defectf builds a DefectError.
func Defectf(fn, where, format string, args ...any) *DefectError {
	return &DefectError{Func: fn, Where: where, Msg: fmt.Sprintf(format, args...)}
}
