// Package results shapes aggregates into what the live display and the
// reviewer dashboard are allowed to see.
package results

import (
	"sort"

	"github.com/liusai0820/smartscore/internal/domain/conflict"
	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
)

// Decimals is the presentation precision for every aggregate.
const Decimals = 2

// Snapshot is a consistent read of everything a projection needs.
type Snapshot struct {
	State     event.State
	Reviewers []model.Reviewer
	// Projects must be in presentation order.
	Projects []model.Project
	Scores   []model.Score
}

// ProjectView is one project row. Aggregate fields are nil unless the
// event is revealed; ScoreCount is always present.
type ProjectView struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	Department       string                     `json:"department"`
	Presenter        string                     `json:"presenter"`
	Description      string                     `json:"description,omitempty"`
	ScoreCount       int                        `json:"scoreCount"`
	FinalScore       *float64                   `json:"finalScore"`
	PrimaryAverage   *float64                   `json:"primaryAverage"`
	SecondaryAverage *float64                   `json:"secondaryAverage"`
	Dimensions       *scoring.DimensionAverages `json:"dimensionAverages"`
	StdDev           *float64                   `json:"stdDev"`
}

// ReviewerStatus reports whether an active reviewer has scored the spotlight.
type ReviewerStatus struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Bloc     model.Bloc `json:"bloc"`
	HasVoted bool       `json:"hasVoted"`
}

// Display is the payload polled by the audience screen.
type Display struct {
	Phase          event.Phase      `json:"phase"`
	Spotlight      *model.Project   `json:"spotlight"`
	Roster         []ReviewerStatus `json:"roster"`
	TotalReviewers int              `json:"totalReviewers"`
	VotedCount     int              `json:"votedCount"`
	Projects       []ProjectView    `json:"projects"`
}

// Project computes the display payload for snap. Nothing in snap is mutated.
func Project(snap Snapshot) Display {
	roster := scoring.NewRoster(snap.Reviewers)
	byProject := make(map[string][]model.Score, len(snap.Projects))
	for _, s := range snap.Scores {
		byProject[s.ProjectID] = append(byProject[s.ProjectID], s)
	}

	revealed := snap.State.Revealed()
	views := make([]ProjectView, 0, len(snap.Projects))
	finals := make(map[string]float64, len(snap.Projects))
	for _, p := range snap.Projects {
		res := scoring.Aggregate(p.ID, byProject[p.ID], roster)
		finals[p.ID] = res.FinalScore
		views = append(views, view(p, res, revealed))
	}

	if revealed {
		sort.SliceStable(views, func(i, j int) bool {
			return finals[views[i].ID] > finals[views[j].ID]
		})
	}

	out := Display{
		Phase:    snap.State.Phase,
		Roster:   []ReviewerStatus{},
		Projects: views,
	}

	if !snap.State.HasSpotlight() {
		return out
	}
	for i := range snap.Projects {
		if snap.Projects[i].ID == snap.State.SpotlightProjectID {
			p := snap.Projects[i]
			out.Spotlight = &p
			break
		}
	}
	if out.Spotlight == nil {
		return out
	}

	voted := make(map[string]bool)
	for _, s := range byProject[out.Spotlight.ID] {
		voted[s.ReviewerID] = true
	}
	for _, r := range activeOrdered(snap.Reviewers) {
		st := ReviewerStatus{ID: r.ID, Name: r.Name, Bloc: r.Bloc, HasVoted: voted[r.ID]}
		if st.HasVoted {
			out.VotedCount++
		}
		out.Roster = append(out.Roster, st)
	}
	out.TotalReviewers = len(out.Roster)
	return out
}

func view(p model.Project, res scoring.Result, revealed bool) ProjectView {
	v := ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Department:  p.Department,
		Presenter:   p.Presenter,
		Description: p.Description,
		ScoreCount:  res.ScoreCount,
	}
	if !revealed {
		return v
	}
	v.FinalScore = ptr(scoring.Round(res.FinalScore, Decimals))
	v.StdDev = ptr(scoring.Round(res.StdDev, Decimals))
	if res.HasPrimary {
		v.PrimaryAverage = ptr(scoring.Round(res.PrimaryAverage, Decimals))
	}
	if res.HasSecondary {
		v.SecondaryAverage = ptr(scoring.Round(res.SecondaryAverage, Decimals))
	}
	d := res.Dimensions
	v.Dimensions = &scoring.DimensionAverages{
		Data:      scoring.Round(d.Data, Decimals),
		Info:      scoring.Round(d.Info, Decimals),
		Knowledge: scoring.Round(d.Knowledge, Decimals),
		Insight:   scoring.Round(d.Insight, Decimals),
		Approval:  scoring.Round(d.Approval, Decimals),
		Award:     scoring.Round(d.Award, Decimals),
	}
	return v
}

// activeOrdered returns active reviewers, primary bloc first, then by id.
func activeOrdered(reviewers []model.Reviewer) []model.Reviewer {
	out := make([]model.Reviewer, 0, len(reviewers))
	for _, r := range reviewers {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Bloc != out[j].Bloc {
			return out[i].Bloc == model.BlocPrimary
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DashboardItem is one project as seen by a single reviewer.
type DashboardItem struct {
	Project     model.Project     `json:"project"`
	MyScore     *model.Dimensions `json:"myScore"`
	MyTotal     *int              `json:"myTotal"`
	HasConflict bool              `json:"hasConflict"`
}

// Dashboard is the reviewer's own view: every project, their own score if
// any, and whether they are barred from scoring it. Other reviewers' scores
// are never included.
type Dashboard struct {
	Phase      event.Phase           `json:"phase"`
	Spotlight  string                `json:"spotlightProjectId,omitempty"`
	Reviewer   model.Reviewer        `json:"reviewer"`
	Items      []DashboardItem       `json:"projects"`
	Dimensions []model.DimensionSpec `json:"dimensions"`
}

// ForReviewer builds r's dashboard. own holds only r's scores.
func ForReviewer(state event.State, r model.Reviewer, projects []model.Project, own []model.Score) Dashboard {
	mine := make(map[string]model.Dimensions, len(own))
	for _, s := range own {
		if s.ReviewerID == r.ID {
			mine[s.ProjectID] = s.Dimensions
		}
	}

	items := make([]DashboardItem, 0, len(projects))
	for _, p := range projects {
		it := DashboardItem{Project: p, HasConflict: !conflict.MayScore(r, p)}
		if d, ok := mine[p.ID]; ok {
			total := d.Total()
			it.MyScore = &d
			it.MyTotal = &total
		}
		items = append(items, it)
	}
	return Dashboard{
		Phase:      state.Phase,
		Spotlight:  state.SpotlightProjectID,
		Reviewer:   r,
		Items:      items,
		Dimensions: model.DimensionSpecs(),
	}
}

func ptr[T any](v T) *T { return &v }
