package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMinEngineVersion is the oldest engine release accepted when no floor is configured.
const DefaultMinEngineVersion = "3.0.0"

// CompareVersions compares two dotted version strings element by element as
// integers, so "3.9.0" < "3.10.0". Missing trailing elements count as zero.
// It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	pa, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	pb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}

	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
	}
	return 0, nil
}

func parseVersion(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty version string")
	}

	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version %q: element %q is not a number", v, p)
		}
		out[i] = n
	}
	return out, nil
}
