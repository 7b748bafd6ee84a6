package metrics

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRenderMetricsCache(t *testing.T) {
	jobID := "job-cache"
	DeleteRenderMetrics(jobID)

	if m := GetRenderMetrics(jobID); m != nil {
		t.Error("expected nil for unknown job")
	}

	SetRenderMetrics(jobID, RenderMetrics{Frames: 120, FPS: 30, DroppedFrames: 1, Speed: 1.5, Progress: 0.25})

	m := GetRenderMetrics(jobID)
	if m == nil {
		t.Fatal("expected cached metrics")
	}
	if m.Frames != 120 || m.FPS != 30 || m.DroppedFrames != 1 || m.Speed != 1.5 || m.Progress != 0.25 {
		t.Errorf("cached = %+v", *m)
	}

	m.FPS = 999
	if GetRenderMetrics(jobID).FPS != 30 {
		t.Error("returned copy aliases the cache")
	}

	if got := testutil.ToFloat64(renderFPS.WithLabelValues(jobID)); got != 30 {
		t.Errorf("fps gauge = %v, want 30", got)
	}

	DeleteRenderMetrics(jobID)
	if GetRenderMetrics(jobID) != nil {
		t.Error("metrics remain after delete")
	}
}

func TestGetAllRenderMetrics(t *testing.T) {
	DeleteRenderMetrics("job-a")
	DeleteRenderMetrics("job-b")
	defer DeleteRenderMetrics("job-a")
	defer DeleteRenderMetrics("job-b")

	SetRenderMetrics("job-a", RenderMetrics{FPS: 24})
	SetRenderMetrics("job-b", RenderMetrics{FPS: 60})

	all := GetAllRenderMetrics()
	if all["job-a"] == nil || all["job-a"].FPS != 24 {
		t.Errorf("job-a = %+v", all["job-a"])
	}
	if all["job-b"] == nil || all["job-b"].FPS != 60 {
		t.Errorf("job-b = %+v", all["job-b"])
	}
}

func TestRenderMetricsConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("job-concurrent-%d", i)
			for j := range 50 {
				SetRenderMetrics(id, RenderMetrics{Frames: float64(j)})
				_ = GetRenderMetrics(id)
				_ = GetAllRenderMetrics()
			}
			DeleteRenderMetrics(id)
		}()
	}
	wg.Wait()
}

func TestObserveProcess(t *testing.T) {
	before := testutil.ToFloat64(processRuns.WithLabelValues("exited"))
	ObserveProcess("exited", 250*time.Millisecond)
	if got := testutil.ToFloat64(processRuns.WithLabelValues("exited")); got != before+1 {
		t.Errorf("runs_total{exited} = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetRenderMetrics("job-http", RenderMetrics{FPS: 12})
	defer DeleteRenderMetrics("job-http")
	IncRenders("completed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`captioner_render_fps{job_id="job-http"} 12`,
		`captioner_render_jobs_total{state="completed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
