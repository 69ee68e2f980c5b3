package conflict_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/liusai0820/smartscore/internal/domain/conflict"
	"github.com/liusai0820/smartscore/internal/domain/model"
)

func TestDepartmentKey(t *testing.T) {
	Convey("Given raw department names", t, func() {
		Convey("whitespace anywhere is removed", func() {
			So(conflict.NewDepartmentKey("  技术 部 "), ShouldEqual, conflict.DepartmentKey("技术部"))
			So(conflict.NewDepartmentKey("技术　部\t"), ShouldEqual, conflict.DepartmentKey("技术部"))
		})

		Convey("full-width parentheses become ASCII", func() {
			So(conflict.NewDepartmentKey("规划（研究）部"), ShouldEqual, conflict.DepartmentKey("规划(研究)部"))
		})

		Convey("an empty or blank name yields the zero key", func() {
			So(conflict.NewDepartmentKey("").IsZero(), ShouldBeTrue)
			So(conflict.NewDepartmentKey("   ").IsZero(), ShouldBeTrue)
		})

		Convey("zero keys never match", func() {
			So(conflict.SameDepartment("", ""), ShouldBeFalse)
			So(conflict.SameDepartment(" ", "技术部"), ShouldBeFalse)
		})
	})
}

func TestMayScore(t *testing.T) {
	Convey("Given a reviewer in 技术部", t, func() {
		r := model.Reviewer{ID: "r1", Name: "张三", Bloc: model.BlocSecondary, Department: "技术部", Active: true}

		Convey("a project of the same department conflicts after normalization", func() {
			So(conflict.MayScore(r, model.Project{ID: "p1", Department: "技术部"}), ShouldBeFalse)
			So(conflict.MayScore(r, model.Project{ID: "p1", Department: " 技术 部"}), ShouldBeFalse)
		})

		Convey("a project of another department is allowed", func() {
			So(conflict.MayScore(r, model.Project{ID: "p2", Department: "市场部"}), ShouldBeTrue)
		})

		Convey("a project with no department is allowed", func() {
			So(conflict.MayScore(r, model.Project{ID: "p3"}), ShouldBeTrue)
		})

		Convey("a reviewer with no department may score anything", func() {
			r.Department = ""
			So(conflict.MayScore(r, model.Project{ID: "p1", Department: "技术部"}), ShouldBeTrue)
		})
	})
}

func TestDiagnose(t *testing.T) {
	Convey("Given reviewers and projects with messy departments", t, func() {
		reviewers := []model.Reviewer{
			{ID: "r1", Name: "张三", Department: "技术部"},
			{ID: "r2", Name: "李四", Department: "Sales Dept"},
			{ID: "r3", Name: "王五"},
		}
		projects := []model.Project{
			{ID: "p1", Name: "A", Department: "技术 部"},
			{ID: "p2", Name: "B", Department: "sales dept."},
			{ID: "p3", Name: "C", Department: "财务中心"},
		}

		findings := conflict.Diagnose(reviewers, projects, 0)

		Convey("exact and near pairs are reported, near first", func() {
			So(len(findings), ShouldEqual, 2)
			So(findings[0].Kind, ShouldEqual, conflict.MatchNear)
			So(findings[0].ReviewerID, ShouldEqual, "r2")
			So(findings[0].ProjectID, ShouldEqual, "p2")
			So(findings[0].Distance, ShouldEqual, 1)
			So(findings[1].Kind, ShouldEqual, conflict.MatchExact)
			So(findings[1].ReviewerID, ShouldEqual, "r1")
			So(findings[1].ProjectID, ShouldEqual, "p1")
		})

		Convey("unrelated departments produce nothing", func() {
			none := conflict.Diagnose(reviewers[:1], projects[1:], 1)
			So(none, ShouldBeEmpty)
		})
	})
}
