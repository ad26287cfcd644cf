// Package release models JavaFX release identifiers, the artifact kinds that
// make up a release, and the table that maps releases to the minimum Java
// runtime they need.
package release

import (
	"slices"
	"strconv"
	"strings"

	"jfx/internal/fault"
)

// ID is a parsed JavaFX release identifier such as "21.0.1" or "23-ea".
// The zero value means "no release".
type ID struct {
	raw     string
	numbers []int
	suffix  string
}

// Parse parses a release identifier. The numeric core is everything before the
// first '-', split on '.'; the rest is the suffix.
func Parse(s string) (ID, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ID{}, fault.InvalidVersion("empty release identifier")
	}

	core, suffix, _ := strings.Cut(raw, "-")
	parts := strings.Split(core, ".")
	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || part == "" || part[0] == '+' {
			return ID{}, fault.InvalidVersion("release %q: non-numeric component %q", raw, part)
		}
		numbers = append(numbers, n)
	}

	return ID{raw: raw, numbers: numbers, suffix: suffix}, nil
}

// MustParse is Parse for constants and tests
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier exactly as it was parsed
func (id ID) String() string { return id.raw }

// IsZero reports whether id is the "no release" value
func (id ID) IsZero() bool { return id.raw == "" }

// Major returns the first numeric component
func (id ID) Major() int {
	if len(id.numbers) == 0 {
		return -1
	}
	return id.numbers[0]
}

// Suffix returns the text after the first '-', e.g. "ea"
func (id ID) Suffix() string { return id.suffix }

// Compare orders releases by numeric tuple, then suffix, then raw text.
//
// The numeric tuples compare element-wise and a strict prefix sorts first, so
// "21" < "21.0" < "21.0.1". Suffixes compare as plain strings, so a release
// without suffix sorts before any suffixed release with the same numbers:
// "23" < "23-ea" < "23-ea+5". Identical keys written differently ("21.0" and
// "21.00") fall back to the raw string so the order is total.
// The zero ID sorts before everything.
func Compare(a, b ID) int {
	if c := slices.Compare(a.numbers, b.numbers); c != 0 {
		return c
	}
	if c := strings.Compare(a.suffix, b.suffix); c != 0 {
		return c
	}
	return strings.Compare(a.raw, b.raw)
}

// Less reports whether a sorts before b
func Less(a, b ID) bool { return Compare(a, b) < 0 }

// Sort orders ids ascending (newest last) in place
func Sort(ids []ID) {
	slices.SortFunc(ids, Compare)
}

// Newest returns the greatest id, or the zero ID for an empty slice
func Newest(ids []ID) ID {
	if len(ids) == 0 {
		return ID{}
	}
	return slices.MaxFunc(ids, Compare)
}

// ParseAll parses every token, skipping the ones that are not release
// identifiers. The result is sorted ascending with duplicates removed.
func ParseAll(tokens []string) (ids []ID, skipped []string) {
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		id, err := Parse(token)
		if err != nil {
			skipped = append(skipped, token)
			continue
		}
		if seen[id.raw] {
			continue
		}
		seen[id.raw] = true
		ids = append(ids, id)
	}
	Sort(ids)
	return ids, skipped
}

// MarshalText renders the identifier as written
func (id ID) MarshalText() ([]byte, error) { return []byte(id.raw), nil }

// UnmarshalText parses an identifier; empty text yields the zero ID
func (id *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
