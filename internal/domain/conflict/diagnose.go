package conflict

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// DefaultMaxDistance is the edit distance under which two departments are
// reported as a probable typo.
const DefaultMaxDistance = 2

var foldCaser = cases.Fold()

// MatchKind classifies a reviewer/project department pair.
type MatchKind string

const (
	// MatchExact pairs conflict under MayScore.
	MatchExact MatchKind = "exact"
	// MatchNear pairs do not conflict but look like the same department.
	MatchNear MatchKind = "near"
)

// Finding is one reviewer/project department pair worth an admin's attention.
type Finding struct {
	Kind               MatchKind `json:"kind"`
	ReviewerID         string    `json:"reviewerId"`
	ReviewerName       string    `json:"reviewerName"`
	ReviewerDepartment string    `json:"reviewerDepartment"`
	ProjectID          string    `json:"projectId"`
	ProjectName        string    `json:"projectName"`
	ProjectDepartment  string    `json:"projectDepartment"`
	Distance           int       `json:"distance"`
}

// Diagnose lists department pairs that conflict and pairs that nearly do.
// A near miss usually means a spreadsheet typo that silently disables the
// conflict rule for that reviewer. maxDistance <= 0 uses DefaultMaxDistance.
func Diagnose(reviewers []model.Reviewer, projects []model.Project, maxDistance int) []Finding {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}

	findings := make([]Finding, 0)
	for _, r := range reviewers {
		rk := NewDepartmentKey(r.Department)
		if rk.IsZero() {
			continue
		}
		rFolded := foldCaser.String(string(rk))
		for _, p := range projects {
			pk := NewDepartmentKey(p.Department)
			if pk.IsZero() {
				continue
			}
			f := Finding{
				ReviewerID:         r.ID,
				ReviewerName:       r.Name,
				ReviewerDepartment: r.Department,
				ProjectID:          p.ID,
				ProjectName:        p.Name,
				ProjectDepartment:  p.Department,
			}
			if rk.Matches(pk) {
				f.Kind = MatchExact
				findings = append(findings, f)
				continue
			}
			// levenshtein operates on runes, so CJK names count one edit per character.
			d := levenshtein.ComputeDistance(rFolded, foldCaser.String(string(pk)))
			if d <= maxDistance {
				f.Kind = MatchNear
				f.Distance = d
				findings = append(findings, f)
			}
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind == MatchNear
		}
		return findings[i].Distance < findings[j].Distance
	})
	return findings
}
