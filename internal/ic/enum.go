package ic

import (
	"fmt"
	"strings"
)

func enumString(names []string, v uint8) string {
	if int(v) < len(names) && names[v] != "" {
		return names[v]
	}
	return fmt.Sprintf("?%d", v)
}

func parseEnum[T ~uint8](what string, names []string, s string) (T, error) {
	for i, n := range names {
		if n != "" && strings.EqualFold(n, s) {
			return T(i), nil //nolint:gosec // G115: len(names) < 256
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}
