package release

import (
	"fmt"
	"slices"

	"jfx/internal/fault"
)

// BaselineRuntime is the Java version assumed when the caller has none
const BaselineRuntime = 21

// Rule says that releases with major version >= MinMajor need at least Java
// Runtime. An Unsupported rule withholds those releases from every runtime.
type Rule struct {
	MinMajor    int  `json:"min_major" yaml:"min_major"`
	Runtime     int  `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Unsupported bool `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

// Table maps release major versions to minimum Java runtimes.
// The rule with the greatest MinMajor not above the release major applies.
type Table struct {
	rules []Rule
}

// DefaultRules are the lines the Recaf launcher has been validated with.
// JavaFX 24 still runs on Java 21; 25 and later are not offered yet.
var DefaultRules = []Rule{
	{MinMajor: 0, Runtime: 17},
	{MinMajor: 23, Runtime: 21},
	{MinMajor: 25, Unsupported: true},
}

// NewTable builds a table from rules in any order. Rules with a negative bound
// or, unless unsupported, a non-positive runtime are rejected, as are
// duplicate bounds.
func NewTable(rules []Rule) (*Table, error) {
	sorted := slices.Clone(rules)
	slices.SortFunc(sorted, func(a, b Rule) int { return a.MinMajor - b.MinMajor })

	for i, r := range sorted {
		if r.MinMajor < 0 || (r.Runtime <= 0 && !r.Unsupported) {
			return nil, fmt.Errorf("invalid compatibility rule %d->%d", r.MinMajor, r.Runtime)
		}
		if i > 0 && sorted[i-1].MinMajor == r.MinMajor {
			return nil, fmt.Errorf("duplicate compatibility rule for major %d", r.MinMajor)
		}
	}
	return &Table{rules: sorted}, nil
}

// DefaultTable returns the table built from DefaultRules
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules)
	if err != nil {
		panic(err)
	}
	return t
}

// Rules returns a copy of the rules, ascending by MinMajor
func (t *Table) Rules() []Rule { return slices.Clone(t.rules) }

// MinimumRuntime returns the lowest Java major version that can run id.
// A release whose major version is unknown is an error, and so is a release
// covered by an unsupported rule. A release below every rule has no
// requirement we know of and reports 0.
func (t *Table) MinimumRuntime(id ID) (int, error) {
	major := id.Major()
	if major < 0 {
		return 0, fault.InvalidVersion("release %q has no major version", id)
	}

	var applied Rule
	for _, r := range t.rules {
		if r.MinMajor > major {
			break
		}
		applied = r
	}
	if applied.Unsupported {
		return 0, fault.NoCompatibleRelease("JavaFX %d and later are not supported", applied.MinMajor)
	}
	return applied.Runtime, nil
}

// Compatible reports whether id runs on a Java runtime with the given major
// version. Releases with an invalid version or an unsupported major are never
// compatible.
func (t *Table) Compatible(id ID, runtime int) bool {
	required, err := t.MinimumRuntime(id)
	if err != nil {
		return false
	}
	return required <= runtime
}
