package event_test

import (
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/liusai0820/smartscore/internal/domain/event"
)

func TestParsePhase(t *testing.T) {
	convey.Convey("Given phase labels", t, func() {
		convey.Convey("canonical labels parse in any case", func() {
			for in, want := range map[string]event.Phase{
				"CLOSED":     event.PhaseClosed,
				"accepting":  event.PhaseAccepting,
				" Revealed ": event.PhaseRevealed,
			} {
				got, err := event.ParsePhase(in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, want)
			}
		})

		convey.Convey("SCORING is an alias for ACCEPTING", func() {
			got, err := event.ParsePhase("scoring")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, event.PhaseAccepting)
		})

		convey.Convey("unknown labels are rejected", func() {
			_, err := event.ParsePhase("PAUSED")
			convey.So(errors.Is(err, event.ErrInvalidPhase), convey.ShouldBeTrue)
			convey.So(event.Phase("PAUSED").Valid(), convey.ShouldBeFalse)
		})
	})
}

func TestState(t *testing.T) {
	convey.Convey("Given the initial state", t, func() {
		s := event.Initial()

		convey.Convey("it is closed with no spotlight", func() {
			convey.So(s.Phase, convey.ShouldEqual, event.PhaseClosed)
			convey.So(s.HasSpotlight(), convey.ShouldBeFalse)
			convey.So(s.AcceptsSubmissions(), convey.ShouldBeFalse)
			convey.So(s.Revealed(), convey.ShouldBeFalse)
		})

		convey.Convey("accepting allows submissions but does not reveal", func() {
			s.Phase = event.PhaseAccepting
			convey.So(s.AcceptsSubmissions(), convey.ShouldBeTrue)
			convey.So(s.Revealed(), convey.ShouldBeFalse)
		})

		convey.Convey("revealed rejects submissions", func() {
			s.Phase = event.PhaseRevealed
			convey.So(s.AcceptsSubmissions(), convey.ShouldBeFalse)
			convey.So(s.Revealed(), convey.ShouldBeTrue)
		})
	})
}
