package site

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a router with an API route and the site", t, func() {
		r := chi.NewRouter()
		r.Get("/api/display", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		Register(r)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			return w
		}

		Convey("Then / serves the display page", func() {
			w := get("/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(w.Body.String(), ShouldContainSubstring, "/display.js")
		})

		Convey("And the reviewer page and scripts are served", func() {
			So(get("/vote.html").Code, ShouldEqual, http.StatusOK)
			So(get("/display.js").Code, ShouldEqual, http.StatusOK)
			So(get("/app.css").Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
		})

		Convey("And API routes take precedence", func() {
			So(get("/api/display").Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("And unknown assets are not found", func() {
			So(get("/missing.png").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSiteHandlerWithNilRouter(t *testing.T) {
	Convey("Given a nil router", t, func() {
		Convey("Then Register panics", func() {
			So(func() { Register(nil) }, ShouldPanic)
		})
	})
}
