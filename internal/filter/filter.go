// Package filter implements the conjunctive Filter Set from spec section 4.F:
// an ordered sequence of typed predicates evaluated left-to-right with
// short-circuit on the first false. An empty set matches every event.
package filter

import (
	"strings"

	"github.com/marcoeg/crypto-tracer/internal/event"
)

// Predicate is satisfied by each of the five variants below.
type Predicate interface {
	Match(rec *event.Record) bool
}

// PID matches events from exactly one process id.
type PID uint32

// Match implements Predicate.
func (p PID) Match(rec *event.Record) bool { return rec.PID == uint32(p) }

// ProcessSubstring matches a case-insensitive substring of process_name.
type ProcessSubstring struct{ Substr string }

// Match implements Predicate.
func (p ProcessSubstring) Match(rec *event.Record) bool {
	return containsFold(rec.ProcessName, p.Substr)
}

// LibrarySubstring matches a case-insensitive substring of either
// library_path or library_short_name; either hit suffices.
type LibrarySubstring struct{ Substr string }

// Match implements Predicate.
func (p LibrarySubstring) Match(rec *event.Record) bool {
	return containsFold(rec.LibraryPath, p.Substr) || containsFold(rec.LibraryShortName, p.Substr)
}

// FileGlob matches file_path against a path-aware glob pattern where '*'
// does not cross '/'. Matching is case-sensitive.
type FileGlob struct{ Pattern string }

// Match implements Predicate.
func (p FileGlob) Match(rec *event.Record) bool {
	return globMatch(p.Pattern, rec.FilePath)
}

// KindEquals matches events of exactly one kind. It is not one of spec
// section 4.F's four predicate variants; it backs the libs/files commands
// (SPEC_FULL.md section C.3), which are monitor pre-seeded with a
// kind-fixed Filter Set entry rather than a new subsystem.
type KindEquals struct{ Kind event.Kind }

// Match implements Predicate.
func (p KindEquals) Match(rec *event.Record) bool { return rec.Kind == p.Kind }

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Set is an ordered, conjunctive sequence of predicates. The zero value is
// an empty set that matches every event.
type Set struct {
	predicates []Predicate
}

// New builds a Set from the given predicates, preserving order.
func New(predicates ...Predicate) *Set {
	return &Set{predicates: predicates}
}

// Add appends a predicate to the set.
func (s *Set) Add(p Predicate) {
	s.predicates = append(s.predicates, p)
}

// Match evaluates the set against rec left-to-right, short-circuiting on the
// first false. An empty set evaluates to true.
func (s *Set) Match(rec *event.Record) bool {
	if s == nil {
		return true
	}
	for _, p := range s.predicates {
		if !p.Match(rec) {
			return false
		}
	}
	return true
}

// globMatch reports whether name matches pattern, where '*' matches any run
// of characters not containing '/', and '?' matches exactly one character
// that is not '/'. This mirrors shell path globbing without relying on a
// host glob implementation that would let '*' cross a path separator (spec
// section 9).
func globMatch(pattern, name string) bool {
	return matchSegment(pattern, name)
}

func matchSegment(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			rest := pattern[1:]
			// '*' consumes zero or more characters, but never a '/'. Try
			// every prefix of name up to (and including) the first '/'.
			for i := 0; ; i++ {
				if matchSegment(rest, name[i:]) {
					return true
				}
				if i >= len(name) || name[i] == '/' {
					return false
				}
			}
		case '?':
			if len(name) == 0 || name[0] == '/' {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}
