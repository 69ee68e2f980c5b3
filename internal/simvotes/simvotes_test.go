package simvotes

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/liusai0820/smartscore/internal/adapters/http/api"
	"github.com/liusai0820/smartscore/internal/adapters/importer"
	service "github.com/liusai0820/smartscore/internal/app"
	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
	"github.com/liusai0820/smartscore/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const panel = `
reviewers:
  - {id: p1, name: alice, bloc: PRIMARY, department: 技术部, passcode: "1234"}
  - {id: p2, name: bob, bloc: PRIMARY, department: 市场部, passcode: "1234"}
  - {id: s1, name: carol, bloc: SECONDARY, department: 技术部, passcode: "1234"}
  - {id: s2, name: dave, bloc: SECONDARY, department: 人事部, passcode: "1234"}
  - {id: s3, name: erin, bloc: SECONDARY, department: 财务部, passcode: "9999"}
  - {id: s4, name: frank, bloc: SECONDARY, department: 行政部, passcode: "1234", active: false}
projects:
  - {name: Alpha, department: 技术部, presenter: A}
`

func newEvent(ctx context.Context) (*service.Service, *httptest.Server, string) {
	issuer, err := auth.NewIssuer("simvotes-test", "smartscore-test", time.Hour)
	So(err, ShouldBeNil)
	svc := service.New(
		service.WithIssuer(issuer),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithLogger(logger.Nop()),
	)
	So(svc.Start(ctx), ShouldBeNil)

	batch, err := importer.Parse(strings.NewReader(panel))
	So(err, ShouldBeNil)
	_, err = svc.Import(ctx, batch)
	So(err, ShouldBeNil)
	projects, err := svc.ListProjects(ctx)
	So(err, ShouldBeNil)

	r := chi.NewRouter()
	api.NewServer(svc, svc, api.WithLogger(logger.Nop())).Register(r)
	return svc, httptest.NewServer(r), projects[0].ID
}

func TestRun(t *testing.T) {
	Convey("Given an accepting event with a spotlight", t, func() {
		ctx := context.Background()
		svc, srv, alpha := newEvent(ctx)
		defer srv.Close()
		defer svc.Stop()

		_, err := svc.SetPhase(ctx, event.PhaseAccepting)
		So(err, ShouldBeNil)
		_, err = svc.SetSpotlight(ctx, alpha)
		So(err, ShouldBeNil)
		_, err = svc.Submit(ctx, "s2", alpha, scoring.InputOf(model.Dimensions{Data: 10, Info: 10, Knowledge: 10, Insight: 10, Approval: 10, Award: 10}))
		So(err, ShouldBeNil)

		cfg := &Config{BaseURL: srv.URL + "/", Passcode: "1234", Workers: 3, Timeout: 5 * time.Second}

		Convey("When the simulator runs", func() {
			res, err := Run(ctx, cfg)
			So(err, ShouldBeNil)

			Convey("Then only eligible reviewers vote", func() {
				So(res.ProjectID, ShouldEqual, alpha)
				So(res.ProjectName, ShouldEqual, "Alpha")
				So(res.Voted, ShouldEqual, 1)
				So(res.Skipped, ShouldEqual, 2)
				So(res.AlreadyVoted, ShouldEqual, 1)
				So(res.Failed, ShouldEqual, 1)
			})

			Convey("Then the generated score is stored", func() {
				sc, err := svc.Score(ctx, "p2", alpha)
				So(err, ShouldBeNil)
				So(sc.Total(), ShouldBeGreaterThan, 0)
			})

			Convey("Then a second run finds nothing new to cast", func() {
				again, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(again.Voted, ShouldEqual, 0)
				So(again.AlreadyVoted, ShouldEqual, 2)
			})
		})
	})

	Convey("Given an event that cannot take votes", t, func() {
		ctx := context.Background()
		svc, srv, alpha := newEvent(ctx)
		defer srv.Close()
		defer svc.Stop()
		cfg := &Config{BaseURL: srv.URL, Passcode: "1234", Workers: 1, Timeout: 5 * time.Second}

		Convey("When the event is closed", func() {
			_, err := Run(ctx, cfg)
			So(errors.Is(err, ErrNotAccepting), ShouldBeTrue)
		})

		Convey("When nothing is in the spotlight", func() {
			_, err := svc.SetPhase(ctx, event.PhaseAccepting)
			So(err, ShouldBeNil)
			_, err = Run(ctx, cfg)
			So(errors.Is(err, ErrNoSpotlight), ShouldBeTrue)
			So(alpha, ShouldNotBeEmpty)
		})
	})
}

func TestRandomDimensions(t *testing.T) {
	Convey("Given generated scores", t, func() {
		Convey("Then every value is within its ceiling", func() {
			for range 200 {
				d := RandomDimensions()
				_, err := scoring.InputOf(d).Resolve()
				So(err, ShouldBeNil)
			}
		})

		Convey("Then randomIn respects degenerate bounds", func() {
			So(randomIn(5, 5), ShouldEqual, 5)
			So(randomIn(7, 3), ShouldEqual, 7)
		})
	})
}
