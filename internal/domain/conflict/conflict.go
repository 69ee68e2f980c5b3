// Package conflict decides whether a reviewer may score a project.
//
// The rule is department based: nobody scores a project owned by their own
// department. Department strings come from hand-maintained spreadsheets, so
// they are compared through DepartmentKey rather than raw equality.
package conflict

import (
	"strings"
	"unicode"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// DepartmentKey is the normalized form of a department name.
// The zero value never matches anything.
type DepartmentKey string

var parenReplacer = strings.NewReplacer("（", "(", "）", ")")

// NewDepartmentKey removes all whitespace (including full-width spaces) and
// maps full-width parentheses to ASCII ones.
func NewDepartmentKey(raw string) DepartmentKey {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	return DepartmentKey(parenReplacer.Replace(stripped))
}

// IsZero reports whether the key carries no department.
func (k DepartmentKey) IsZero() bool { return k == "" }

// Matches reports whether both keys are non-empty and equal.
func (k DepartmentKey) Matches(other DepartmentKey) bool {
	return !k.IsZero() && !other.IsZero() && k == other
}

// SameDepartment compares two raw department names under normalization.
func SameDepartment(a, b string) bool {
	return NewDepartmentKey(a).Matches(NewDepartmentKey(b))
}

// MayScore reports whether reviewer r is allowed to score project p.
func MayScore(r model.Reviewer, p model.Project) bool {
	return !SameDepartment(r.Department, p.Department)
}
