package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/liusai0820/smartscore/internal/auth"
)

func TestIssuer(t *testing.T) {
	convey.Convey("Given an issuer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		iss, err := auth.NewIssuer("secret", "smartscore", time.Hour, auth.WithClock(clock))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("a reviewer token round-trips", func() {
			tok, err := iss.Issue("r1", auth.RoleReviewer, "张三")
			convey.So(err, convey.ShouldBeNil)

			claims, err := iss.Parse(tok)
			convey.So(err, convey.ShouldBeNil)
			convey.So(claims.Subject, convey.ShouldEqual, "r1")
			convey.So(claims.Role, convey.ShouldEqual, auth.RoleReviewer)
			convey.So(claims.Name, convey.ShouldEqual, "张三")
		})

		convey.Convey("an expired token is rejected", func() {
			tok, _ := iss.Issue("admin", auth.RoleAdmin, "")
			now = now.Add(2 * time.Hour)
			_, err := iss.Parse(tok)
			convey.So(errors.Is(err, auth.ErrInvalidToken), convey.ShouldBeTrue)
		})

		convey.Convey("a token signed with another key is rejected", func() {
			other, _ := auth.NewIssuer("other", "smartscore", time.Hour, auth.WithClock(clock))
			tok, _ := other.Issue("r1", auth.RoleReviewer, "")
			_, err := iss.Parse(tok)
			convey.So(errors.Is(err, auth.ErrInvalidToken), convey.ShouldBeTrue)
		})

		convey.Convey("garbage is rejected", func() {
			_, err := iss.Parse("not-a-token")
			convey.So(errors.Is(err, auth.ErrInvalidToken), convey.ShouldBeTrue)
		})
	})

	convey.Convey("An issuer needs a key and a ttl", t, func() {
		_, err := auth.NewIssuer("", "x", time.Hour)
		convey.So(err, convey.ShouldNotBeNil)
		_, err = auth.NewIssuer("k", "x", 0)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestPasscode(t *testing.T) {
	convey.Convey("Given a hashed passcode", t, func() {
		hash, err := auth.HashPasscode("1234", bcrypt.MinCost)
		convey.So(err, convey.ShouldBeNil)

		convey.So(auth.CheckPasscode(hash, "1234"), convey.ShouldBeNil)
		convey.So(errors.Is(auth.CheckPasscode(hash, "4321"), auth.ErrInvalidCredentials), convey.ShouldBeTrue)
		convey.So(errors.Is(auth.CheckPasscode("", "1234"), auth.ErrInvalidCredentials), convey.ShouldBeTrue)

		_, err = auth.HashPasscode("", bcrypt.MinCost)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
