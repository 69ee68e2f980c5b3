package importer_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/liusai0820/smartscore/internal/adapters/importer"
	"github.com/liusai0820/smartscore/internal/domain/model"
)

func plainHash(p string) (string, error) { return "h:" + p, nil }

func TestParse(t *testing.T) {
	Convey("Given a YAML batch", t, func() {
		doc := `
reviewers:
  - name: 张三
    role: LEADER
    department: 技术部
    passcode: "1234"
  - id: r2
    name: 李四
    bloc: secondary
    department: 市场部
    passcode: "5678"
    active: false
projects:
  - name: Alpha
    department: 技术部
    presenter: 王五
`
		b, err := importer.Parse(strings.NewReader(doc))
		So(err, ShouldBeNil)

		Convey("reviewers are built with hashed passcodes", func() {
			rs, err := b.BuildReviewers(plainHash)
			So(err, ShouldBeNil)
			So(len(rs), ShouldEqual, 2)
			So(rs[0].Bloc, ShouldEqual, model.BlocPrimary)
			So(rs[0].ID, ShouldNotBeEmpty)
			So(rs[0].Active, ShouldBeTrue)
			So(rs[0].PasscodeHash, ShouldEqual, "h:1234")
			So(rs[1].ID, ShouldEqual, "r2")
			So(rs[1].Bloc, ShouldEqual, model.BlocSecondary)
			So(rs[1].Active, ShouldBeFalse)
		})

		Convey("projects keep input order", func() {
			now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			ps := b.BuildProjects(now)
			So(len(ps), ShouldEqual, 1)
			So(ps[0].Name, ShouldEqual, "Alpha")
			So(ps[0].CreatedAt, ShouldEqual, now)
			So(ps[0].ID, ShouldNotBeEmpty)
		})
	})

	Convey("Given a JSON batch using the users alias", t, func() {
		b, err := importer.Parse(strings.NewReader(`{"users":[{"name":"A","role":"DEPT_HEAD","passcode":"1"}]}`))
		So(err, ShouldBeNil)
		So(len(b.Reviewers), ShouldEqual, 1)
		So(b.Empty(), ShouldBeFalse)
	})

	Convey("Given invalid batches", t, func() {
		cases := map[string]string{
			"empty":         ``,
			"unknown key":   `{"teams": []}`,
			"missing name":  `{"projects":[{"department":"x"}]}`,
			"unknown bloc":  `{"reviewers":[{"name":"A","bloc":"VIP","passcode":"1"}]}`,
			"no passcode":   `{"reviewers":[{"name":"A","bloc":"PRIMARY"}]}`,
			"malformed doc": `{"projects": [`,
		}
		for name, doc := range cases {
			Convey("rejects "+name, func() {
				_, err := importer.Parse(strings.NewReader(doc))
				So(errors.Is(err, importer.ErrInvalidBatch), ShouldBeTrue)
			})
		}
	})
}

func TestBuiltins(t *testing.T) {
	Convey("The built-in panel has 19 reviewers in two blocs", t, func() {
		b, err := importer.DefaultReviewers()
		So(err, ShouldBeNil)
		rs, err := b.BuildReviewers(plainHash)
		So(err, ShouldBeNil)
		So(len(rs), ShouldEqual, 19)

		primary := 0
		for _, r := range rs {
			if r.Bloc == model.BlocPrimary {
				primary++
			}
		}
		So(primary, ShouldEqual, 5)
		So(rs[0].ID, ShouldEqual, "01")
	})

	Convey("The mock programme has 13 projects", t, func() {
		b, err := importer.MockProjects()
		So(err, ShouldBeNil)
		So(len(b.Projects), ShouldEqual, 13)
		So(importer.ValidateProjects(b.Projects), ShouldBeNil)
	})
}
