package results_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/results"
)

func score(reviewer, project string, total int) model.Score {
	// Data absorbs the variation so totals are easy to read.
	return model.Score{
		ReviewerID: reviewer,
		ProjectID:  project,
		Dimensions: model.Dimensions{Data: total - 80, Info: 15, Knowledge: 15, Insight: 20, Approval: 15, Award: 15},
	}
}

func fixture() results.Snapshot {
	return results.Snapshot{
		State: event.Initial(),
		Reviewers: []model.Reviewer{
			{ID: "s1", Name: "Sec", Bloc: model.BlocSecondary, Active: true},
			{ID: "p2", Name: "Lead B", Bloc: model.BlocPrimary, Active: true},
			{ID: "p1", Name: "Lead A", Bloc: model.BlocPrimary, Active: true},
			{ID: "off", Name: "Off", Bloc: model.BlocPrimary, Active: false},
		},
		Projects: []model.Project{
			{ID: "a", Name: "Alpha"},
			{ID: "b", Name: "Beta"},
			{ID: "c", Name: "Gamma"},
		},
		Scores: []model.Score{
			score("p1", "a", 90),
			score("p1", "b", 95),
			score("s1", "b", 85),
			score("p1", "c", 90),
		},
	}
}

func TestProjectRedaction(t *testing.T) {
	Convey("Given an event that is not revealed", t, func() {
		snap := fixture()
		snap.State.Phase = event.PhaseAccepting
		out := results.Project(snap)

		Convey("only score counts are visible", func() {
			So(out.Phase, ShouldEqual, event.PhaseAccepting)
			So(len(out.Projects), ShouldEqual, 3)
			for _, v := range out.Projects {
				So(v.FinalScore, ShouldBeNil)
				So(v.PrimaryAverage, ShouldBeNil)
				So(v.SecondaryAverage, ShouldBeNil)
				So(v.Dimensions, ShouldBeNil)
				So(v.StdDev, ShouldBeNil)
			}
			So(out.Projects[1].ScoreCount, ShouldEqual, 2)
		})

		Convey("presentation order is kept", func() {
			So(out.Projects[0].ID, ShouldEqual, "a")
			So(out.Projects[1].ID, ShouldEqual, "b")
			So(out.Projects[2].ID, ShouldEqual, "c")
		})
	})

	Convey("Given the same data once revealed", t, func() {
		snap := fixture()
		snap.State.Phase = event.PhaseRevealed
		out := results.Project(snap)

		Convey("projects are sorted by final score, ties keep order", func() {
			So(out.Projects[0].ID, ShouldEqual, "b")
			So(*out.Projects[0].FinalScore, ShouldEqual, 91)
			So(out.Projects[1].ID, ShouldEqual, "a")
			So(out.Projects[2].ID, ShouldEqual, "c")
			So(*out.Projects[1].FinalScore, ShouldEqual, *out.Projects[2].FinalScore)
		})

		Convey("absent blocs stay nil", func() {
			So(out.Projects[1].SecondaryAverage, ShouldBeNil)
			So(*out.Projects[1].PrimaryAverage, ShouldEqual, 90)
			So(out.Projects[1].Dimensions, ShouldNotBeNil)
		})
	})
}

func TestProjectSpotlight(t *testing.T) {
	Convey("Given a spotlighted project", t, func() {
		snap := fixture()
		snap.State.SpotlightProjectID = "b"
		out := results.Project(snap)

		Convey("the roster lists active reviewers, primary first", func() {
			So(out.Spotlight, ShouldNotBeNil)
			So(out.Spotlight.ID, ShouldEqual, "b")
			So(out.TotalReviewers, ShouldEqual, 3)
			So(out.Roster[0].ID, ShouldEqual, "p1")
			So(out.Roster[1].ID, ShouldEqual, "p2")
			So(out.Roster[2].ID, ShouldEqual, "s1")
		})

		Convey("hasVoted reflects the ledger", func() {
			So(out.Roster[0].HasVoted, ShouldBeTrue)
			So(out.Roster[1].HasVoted, ShouldBeFalse)
			So(out.Roster[2].HasVoted, ShouldBeTrue)
			So(out.VotedCount, ShouldEqual, 2)
		})
	})

	Convey("Given a spotlight that points at a deleted project", t, func() {
		snap := fixture()
		snap.State.SpotlightProjectID = "zzz"
		out := results.Project(snap)

		So(out.Spotlight, ShouldBeNil)
		So(out.Roster, ShouldBeEmpty)
		So(out.TotalReviewers, ShouldEqual, 0)
	})
}

func TestForReviewer(t *testing.T) {
	Convey("Given a reviewer in 技术部", t, func() {
		r := model.Reviewer{ID: "p1", Bloc: model.BlocPrimary, Department: "技术部", Active: true}
		projects := []model.Project{
			{ID: "a", Department: "技术 部"},
			{ID: "b", Department: "市场部"},
		}
		own := []model.Score{score("p1", "b", 88), score("other", "a", 90)}

		d := results.ForReviewer(event.State{Phase: event.PhaseAccepting}, r, projects, own)

		So(d.Phase, ShouldEqual, event.PhaseAccepting)
		So(len(d.Items), ShouldEqual, 2)
		So(d.Items[0].HasConflict, ShouldBeTrue)
		So(d.Items[0].MyScore, ShouldBeNil)
		So(d.Items[1].HasConflict, ShouldBeFalse)
		So(*d.Items[1].MyTotal, ShouldEqual, 88)
		So(len(d.Dimensions), ShouldEqual, 6)
	})
}
