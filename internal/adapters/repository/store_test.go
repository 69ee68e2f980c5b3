package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(t *testing.T) Store {
			return NewMemoryStore(context.Background(), WithShardCount(4))
		}},
		{name: "sqlite", open: func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "smartscore.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		}},
	}
}

func seed(ctx context.Context, s Store) {
	_, err := s.AddReviewers(ctx, []model.Reviewer{
		{ID: "r1", Name: "张三", Bloc: model.BlocPrimary, Department: "技术部", Active: true},
		{ID: "r2", Name: "李四", Bloc: model.BlocSecondary, Department: "市场部", Active: true},
	})
	So(err, ShouldBeNil)
	So(s.ReplaceProjects(ctx, []model.Project{
		{ID: "p1", Name: "Alpha", Department: "技术部", Presenter: "A"},
		{ID: "p2", Name: "Beta", Department: "财务部", Presenter: "B"},
	}), ShouldBeNil)
}

func dims(award int) model.Dimensions {
	return model.Dimensions{Data: 20, Info: 15, Knowledge: 15, Insight: 20, Approval: 15, Award: award}
}

func TestStoreContract(t *testing.T) {
	for _, f := range factories() {
		f := f
		Convey("Given a "+f.name+" store", t, func() {
			ctx := context.Background()
			s := f.open(t)
			Reset(func() { _ = s.Close() })
			seed(ctx, s)

			Convey("identities round-trip", func() {
				rs, err := s.ListReviewers(ctx)
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 2)
				So(rs[0].ID, ShouldEqual, "r1")

				r, err := s.GetReviewerByName(ctx, "李四")
				So(err, ShouldBeNil)
				So(r.Bloc, ShouldEqual, model.BlocSecondary)

				ps, err := s.ListProjects(ctx)
				So(err, ShouldBeNil)
				So(ps[0].ID, ShouldEqual, "p1")
				So(ps[1].ID, ShouldEqual, "p2")

				_, err = s.GetProject(ctx, "nope")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("adding reviewers skips names already present", func() {
				n, err := s.AddReviewers(ctx, []model.Reviewer{
					{ID: "r9", Name: "张三", Bloc: model.BlocSecondary},
					{ID: "r3", Name: "王五", Bloc: model.BlocSecondary, Active: true},
				})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				r, _ := s.GetReviewerByName(ctx, "张三")
				So(r.ID, ShouldEqual, "r1")
			})

			Convey("toggling a reviewer persists", func() {
				r, err := s.SetReviewerActive(ctx, "r2", false)
				So(err, ShouldBeNil)
				So(r.Active, ShouldBeFalse)
				got, _ := s.GetReviewer(ctx, "r2")
				So(got.Active, ShouldBeFalse)

				_, err = s.SetReviewerActive(ctx, "ghost", true)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("a resubmission replaces the previous row", func() {
				now := time.Now().Truncate(time.Millisecond)
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5), UpdatedAt: now}), ShouldBeNil)
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(9), UpdatedAt: now}), ShouldBeNil)

				n, err := s.CountScores(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				got, err := s.GetScore(ctx, "r2", "p1")
				So(err, ShouldBeNil)
				So(got.Dimensions, ShouldResemble, dims(9))
			})

			Convey("scores for unknown keys are refused", func() {
				err := s.UpsertScore(ctx, model.Score{ReviewerID: "r1", ProjectID: "missing", Dimensions: dims(5)})
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				err = s.UpsertScore(ctx, model.Score{ReviewerID: "ghost", ProjectID: "p1", Dimensions: dims(5)})
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				_, err = s.GetScore(ctx, "r1", "p1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("deleting a project cascades scores and the spotlight", func() {
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}), ShouldBeNil)
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p2", Dimensions: dims(5)}), ShouldBeNil)
				_, err := s.SetSpotlight(ctx, "p1")
				So(err, ShouldBeNil)

				So(s.DeleteProject(ctx, "p1"), ShouldBeNil)
				scores, _ := s.ScoresByProject(ctx, "p1")
				So(scores, ShouldBeEmpty)
				left, _ := s.ScoresByReviewer(ctx, "r2")
				So(len(left), ShouldEqual, 1)
				st, _ := s.State(ctx)
				So(st.SpotlightProjectID, ShouldEqual, "")

				So(errors.Is(s.DeleteProject(ctx, "p1"), ErrNotFound), ShouldBeTrue)
			})

			Convey("updating a project keeps its order", func() {
				p, err := s.UpdateProject(ctx, model.Project{ID: "p2", Name: "Beta 2", Department: "技术部", Presenter: "C"})
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Beta 2")
				ps, _ := s.ListProjects(ctx)
				So(ps[1].ID, ShouldEqual, "p2")
				So(ps[1].Department, ShouldEqual, "技术部")
			})

			Convey("phase and spotlight are independent", func() {
				st, err := s.SetPhase(ctx, event.PhaseAccepting)
				So(err, ShouldBeNil)
				So(st.Phase, ShouldEqual, event.PhaseAccepting)

				st, err = s.SetSpotlight(ctx, "p2")
				So(err, ShouldBeNil)
				So(st.Phase, ShouldEqual, event.PhaseAccepting)
				So(st.SpotlightProjectID, ShouldEqual, "p2")

				_, err = s.SetSpotlight(ctx, "ghost")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)

				st, _ = s.SetSpotlight(ctx, "")
				So(st.HasSpotlight(), ShouldBeFalse)

				_, err = s.SetPhase(ctx, event.Phase("PAUSED"))
				So(errors.Is(err, event.ErrInvalidPhase), ShouldBeTrue)
			})

			Convey("reset clears scores and state but not identities", func() {
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}), ShouldBeNil)
				_, _ = s.SetPhase(ctx, event.PhaseRevealed)
				_, _ = s.SetSpotlight(ctx, "p1")

				st, err := s.Reset(ctx)
				So(err, ShouldBeNil)
				So(st, ShouldResemble, event.Initial())

				n, _ := s.CountScores(ctx)
				So(n, ShouldEqual, 0)
				rs, _ := s.ListReviewers(ctx)
				So(len(rs), ShouldEqual, 2)
				ps, _ := s.ListProjects(ctx)
				So(len(ps), ShouldEqual, 2)
			})

			Convey("replacing projects drops scores and closes the event", func() {
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}), ShouldBeNil)
				_, _ = s.SetPhase(ctx, event.PhaseAccepting)

				So(s.ReplaceProjects(ctx, []model.Project{{ID: "p9", Name: "New"}}), ShouldBeNil)
				n, _ := s.CountScores(ctx)
				So(n, ShouldEqual, 0)
				st, _ := s.State(ctx)
				So(st.Phase, ShouldEqual, event.PhaseClosed)

				err := s.ReplaceProjects(ctx, []model.Project{{ID: "d"}, {ID: "d"}})
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
			})

			Convey("a submission is stored only while the event accepts", func() {
				sc := model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}
				So(errors.Is(s.SubmitScore(ctx, sc), ErrNotAccepting), ShouldBeTrue)

				_, _ = s.SetPhase(ctx, event.PhaseAccepting)
				So(s.SubmitScore(ctx, sc), ShouldBeNil)

				_, _ = s.Reset(ctx)
				So(errors.Is(s.SubmitScore(ctx, sc), ErrNotAccepting), ShouldBeTrue)
				n, _ := s.CountScores(ctx)
				So(n, ShouldEqual, 0)

				_, _ = s.SetPhase(ctx, event.PhaseAccepting)
				So(errors.Is(s.SubmitScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "gone", Dimensions: dims(5)}), ErrNotFound), ShouldBeTrue)
			})

			Convey("an import applies reviewers and projects together", func() {
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}), ShouldBeNil)
				res, err := s.Import(ctx,
					[]model.Reviewer{{ID: "r3", Name: "王五", Bloc: model.BlocSecondary, Active: true}},
					[]model.Project{{ID: "p9", Name: "New"}})
				So(err, ShouldBeNil)
				So(res, ShouldResemble, ImportResult{ReviewersAdded: 1, ProjectsReplaced: 2, ScoresCleared: 1})

				ps, _ := s.ListProjects(ctx)
				So(len(ps), ShouldEqual, 1)
				So(ps[0].ID, ShouldEqual, "p9")
			})

			Convey("an import without projects keeps the programme and ledger", func() {
				So(s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(5)}), ShouldBeNil)
				res, err := s.Import(ctx, []model.Reviewer{{ID: "r3", Name: "王五", Bloc: model.BlocSecondary}}, nil)
				So(err, ShouldBeNil)
				So(res, ShouldResemble, ImportResult{ReviewersAdded: 1})
				n, _ := s.CountScores(ctx)
				So(n, ShouldEqual, 1)
			})

			Convey("a failed import leaves nothing behind", func() {
				_, err := s.Import(ctx,
					[]model.Reviewer{{ID: "r3", Name: "王五", Bloc: model.BlocSecondary}},
					[]model.Project{{ID: "d"}, {ID: "d"}})
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)

				_, err = s.GetReviewerByName(ctx, "王五")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				ps, _ := s.ListProjects(ctx)
				So(len(ps), ShouldEqual, 2)
			})
		})
	}
}

func TestStoreConcurrentUpserts(t *testing.T) {
	for _, f := range factories() {
		f := f
		Convey("Given concurrent submissions to a "+f.name+" store", t, func() {
			ctx := context.Background()
			s := f.open(t)
			Reset(func() { _ = s.Close() })
			seed(ctx, s)

			var wg sync.WaitGroup
			errs := make(chan error, 40)
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func(award int) {
					defer wg.Done()
					errs <- s.UpsertScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(award)})
				}(i%15 + 1)
				go func(award int) {
					defer wg.Done()
					errs <- s.UpsertScore(ctx, model.Score{ReviewerID: "r1", ProjectID: "p2", Dimensions: dims(award)})
				}(i%15 + 1)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				So(err, ShouldBeNil)
			}

			Convey("each key holds exactly one row", func() {
				n, err := s.CountScores(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				all, _ := s.AllScores(ctx)
				So(all[0].ProjectID+" "+all[1].ProjectID, ShouldEqual, "p1 p2")
			})
		})
	}
}

func TestStoreSubmitRacesReset(t *testing.T) {
	for _, f := range factories() {
		f := f
		Convey("Given submissions racing a reset on a "+f.name+" store", t, func() {
			ctx := context.Background()
			s := f.open(t)
			Reset(func() { _ = s.Close() })
			seed(ctx, s)
			_, err := s.SetPhase(ctx, event.PhaseAccepting)
			So(err, ShouldBeNil)

			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(award int) {
					defer wg.Done()
					<-start
					err := s.SubmitScore(ctx, model.Score{ReviewerID: "r2", ProjectID: "p1", Dimensions: dims(award)})
					if err != nil && !errors.Is(err, ErrNotAccepting) {
						t.Errorf("SubmitScore: %v", err)
					}
				}(i%15 + 1)
			}
			close(start)
			_, err = s.Reset(ctx)
			So(err, ShouldBeNil)
			wg.Wait()

			Convey("no score survives the reset", func() {
				n, err := s.CountScores(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	}
}
