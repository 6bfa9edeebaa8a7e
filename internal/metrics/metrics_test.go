package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should use a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Gatherer(), ShouldNotEqual, prometheus.DefaultGatherer)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration should panic", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})

		Convey("When creating with custom options", func() {
			manager := NewManager(
				WithNamespace("ablate"),
				WithSubsystem("test"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithConstLabels(map[string]string{"host": "node1"}),
			)
			manager.ObserveLoad("voyager", time.Second, nil)
			out := textfile(manager)

			Convey("Then names and labels should follow them", func() {
				So(out, ShouldContainSubstring, `ablate_test_loads_total{host="node1",outcome="measured"} 1`)
				So(out, ShouldContainSubstring, `ablate_test_load_duration_seconds_bucket{host="node1",le="1"} 1`)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager", t, func() {
		manager := NewManager()
		boom := errors.New("boom")

		Convey("When cells and loads are observed", func() {
			manager.ObserveLoad("voyager", 20*time.Millisecond, nil)
			manager.ObserveLoad("missing", time.Millisecond, boom)
			manager.ObserveCell("bliss_sk", "voyager", 3*time.Millisecond, nil)
			manager.ObserveCell("bliss_sk", "missing", 0, boom)
			manager.ObserveCell("bliss_sk", "voyager", time.Millisecond, nil)
			manager.ObserveRun(time.Unix(1700000000, 0), 1500*time.Millisecond, 15, 2, 1)
			out := textfile(manager)

			Convey("Then counts are split by outcome", func() {
				So(out, ShouldContainSubstring, `noiseablate_harness_cells_total{outcome="measured",variant="bliss_sk"} 2`)
				So(out, ShouldContainSubstring, `noiseablate_harness_cells_total{outcome="failed",variant="bliss_sk"} 1`)
				So(out, ShouldContainSubstring, `noiseablate_harness_loads_total{outcome="failed"} 1`)
				So(out, ShouldContainSubstring, `noiseablate_harness_cell_duration_seconds_count{variant="bliss_sk"} 3`)
			})

			Convey("Then the run gauges hold the last run", func() {
				So(out, ShouldContainSubstring, "noiseablate_harness_run_duration_seconds 1.5")
				So(out, ShouldContainSubstring, "noiseablate_harness_run_failed_cells 1")
				So(out, ShouldContainSubstring, "noiseablate_harness_matrix_variants 15")
				So(out, ShouldContainSubstring, "noiseablate_harness_last_run_timestamp_seconds 1.7e+09")
			})
		})
	})
}

func TestMetricsExport(t *testing.T) {
	Convey("Given a manager with one observation", t, func() {
		manager := NewManager()
		manager.ObserveCell("baseline", "voyager", time.Millisecond, nil)

		Convey("When writing to an unwritable path", func() {
			err := manager.WriteTextfile(filepath.Join(t.TempDir(), "missing", "out.prom"))

			Convey("Then it should report an export failure", func() {
				So(errors.Is(err, ErrExportFailed), ShouldBeTrue)
			})
		})

		Convey("When pushing to a gateway", func() {
			var (
				method, path string
				body         []byte
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				body, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			err := manager.Push(context.Background(), srv.URL, "ablation")

			Convey("Then the job's metrics are replaced", func() {
				So(err, ShouldBeNil)
				So(method, ShouldEqual, http.MethodPut)
				So(path, ShouldEqual, "/metrics/job/ablation")
				So(len(body), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the gateway rejects the push", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			err := manager.Push(context.Background(), srv.URL, "ablation")

			Convey("Then it should report an export failure", func() {
				So(errors.Is(err, ErrExportFailed), ShouldBeTrue)
			})
		})
	})
}

func textfile(m *Manager) string {
	dir, err := os.MkdirTemp("", "metrics")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "noiseablate.prom")
	if err := m.WriteTextfile(path); err != nil {
		panic(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return string(data)
}
