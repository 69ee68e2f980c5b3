package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every collector is registered there", func() {
				So(manager, ShouldNotBeNil)
				manager.resets.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)

				var found bool
				for _, f := range families {
					if f.GetName() == "smartscore_event_resets_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When overriding namespace and subsystem", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)
			manager.resets.Inc()

			Convey("Then metric names follow", func() {
				So(testutil.CollectAndCount(registry, "test_unit_resets_total"), ShouldEqual, 1)
			})
		})

		Convey("When passing empty options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "smartscore")
				So(manager.subsystem, ShouldEqual, "event")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording submissions", func() {
			before := testutil.ToFloat64(globalManager.submissions.WithLabelValues("accepted"))
			RecordSubmission("accepted", 1.5)
			RecordSubmission("accepted", 2.5)
			RecordSubmission("conflict", 0.1)

			Convey("Then the outcome counter moves", func() {
				So(testutil.ToFloat64(globalManager.submissions.WithLabelValues("accepted")), ShouldEqual, before+2)
			})
		})

		Convey("When the phase changes", func() {
			RecordPhaseTransition("REVEALED")

			Convey("Then only that phase is set", func() {
				So(testutil.ToFloat64(globalManager.currentPhase.WithLabelValues("REVEALED")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.currentPhase.WithLabelValues("CLOSED")), ShouldEqual, 0)
			})

			Convey("And a reset forces CLOSED", func() {
				RecordReset()
				So(testutil.ToFloat64(globalManager.currentPhase.WithLabelValues("CLOSED")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.currentPhase.WithLabelValues("REVEALED")), ShouldEqual, 0)
			})
		})

		Convey("When updating population gauges", func() {
			UpdatePopulation(19, 18, 13, 200)

			Convey("Then they hold the latest values", func() {
				So(testutil.ToFloat64(globalManager.reviewersTotal), ShouldEqual, 19)
				So(testutil.ToFloat64(globalManager.activeReviewers), ShouldEqual, 18)
				So(testutil.ToFloat64(globalManager.projectsTotal), ShouldEqual, 13)
				So(testutil.ToFloat64(globalManager.scoresTotal), ShouldEqual, 200)
			})
		})

		Convey("When recording the rest", func() {
			So(func() {
				RecordDisplayLatency(3)
				RecordHTTPRequest("/api/display", "GET", "200")
				RecordHTTPRequestDuration("/api/display", "GET", "200", 4)
				UpdateRepositoryShardCount(16)
				UpdateRepositoryRecordsPerShard("shard_0", 3)
				RecordRepositoryUpdateLatency(0.2)
				RecordRepositoryQueryLatency(0.1)
				RecordExtraction("ok", 1200)
				RecordErrorByComponent("", "")
				RecordErrorByEndpoint("/api/score", "POST", "conflict")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordSubmission("accepted", float64(j))
					RecordHTTPRequest("/test", "GET", "200")
				}
			}()
		}
		wg.Wait()

		So(GetRegistry(), ShouldNotBeNil)
	})
}
