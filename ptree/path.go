package ptree

import (
	"fmt"
	"strings"
)

// Normalize returns the canonical form of p: dots become slashes and
// surrounding slashes are trimmed.
func Normalize(p string) string {
	return strings.Trim(strings.ReplaceAll(p, ".", "/"), "/")
}

// Join joins path fragments, normalizing each and skipping empty ones.
func Join(parts ...string) string {
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		part = Normalize(part)
		if part == "" {
			continue
		}
		res = append(res, part)
	}
	return strings.Join(res, "/")
}

// Split returns the segments of a normalized path. The root path has no
// segments.
func Split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsIndex reports whether seg addresses an array element: all digits
// without a leading zero (except "0" itself).
func IsIndex(seg string) bool {
	if seg == "" {
		return false
	}
	if len(seg) > 1 && seg[0] == '0' {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

// Within reports whether p is base or a descendant of base. Every path is
// within the root path "".
func Within(p, base string) bool {
	if base == "" || p == base {
		return true
	}
	return len(p) > len(base) && p[len(base)] == '/' && p[:len(base)] == base
}

// Rel returns p relative to base, which must contain it.
func Rel(p, base string) string {
	if base == "" {
		return p
	}
	if p == base {
		return ""
	}
	return p[len(base)+1:]
}

func checkPath(raw string) (string, error) {
	p := Normalize(raw)
	if p == "" {
		return p, nil
	}
	for _, seg := range Split(p) {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
		}
	}
	return p, nil
}
