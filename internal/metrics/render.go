// Package metrics provides Prometheus metrics for render jobs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "captioner"

var (
	renderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "fps",
		Help:      "Current encoding FPS",
	}, []string{"job_id"})

	renderFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "frames",
		Help:      "Frames encoded so far",
	}, []string{"job_id"})

	renderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"job_id"})

	renderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"job_id"})

	renderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "speed",
		Help:      "Encoding speed relative to realtime",
	}, []string{"job_id"})

	renderProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "progress_ratio",
		Help:      "Fraction of the input encoded, 0 when the duration is unknown",
	}, []string{"job_id"})

	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "jobs_total",
		Help:      "Finished render jobs by final state",
	}, []string{"state"})

	processRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "runs_total",
		Help:      "Child processes by outcome",
	}, []string{"outcome"})

	processDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "duration_seconds",
		Help:      "Wall time of finished child processes",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	// Local cache for API and SSE access.
	renderCache   = make(map[string]*RenderMetrics)
	renderCacheMu sync.RWMutex
)

// RenderMetrics holds current metric values for a job.
type RenderMetrics struct {
	Frames          float64 `json:"frames"`
	FPS             float64 `json:"fps"`
	DroppedFrames   float64 `json:"dropped_frames"`
	DuplicateFrames float64 `json:"duplicate_frames"`
	Speed           float64 `json:"speed"`
	Progress        float64 `json:"progress"`
}

// SetRenderMetrics replaces all gauges of a job at once.
func SetRenderMetrics(jobID string, m RenderMetrics) {
	renderFrames.WithLabelValues(jobID).Set(m.Frames)
	renderFPS.WithLabelValues(jobID).Set(m.FPS)
	renderDroppedFrames.WithLabelValues(jobID).Set(m.DroppedFrames)
	renderDuplicateFrames.WithLabelValues(jobID).Set(m.DuplicateFrames)
	renderSpeed.WithLabelValues(jobID).Set(m.Speed)
	renderProgress.WithLabelValues(jobID).Set(m.Progress)

	renderCacheMu.Lock()
	renderCache[jobID] = &m
	renderCacheMu.Unlock()
}

// DeleteRenderMetrics removes all gauges of a job.
func DeleteRenderMetrics(jobID string) {
	renderFrames.DeleteLabelValues(jobID)
	renderFPS.DeleteLabelValues(jobID)
	renderDroppedFrames.DeleteLabelValues(jobID)
	renderDuplicateFrames.DeleteLabelValues(jobID)
	renderSpeed.DeleteLabelValues(jobID)
	renderProgress.DeleteLabelValues(jobID)

	renderCacheMu.Lock()
	delete(renderCache, jobID)
	renderCacheMu.Unlock()
}

// GetRenderMetrics returns a copy of the current values for a job.
func GetRenderMetrics(jobID string) *RenderMetrics {
	renderCacheMu.RLock()
	defer renderCacheMu.RUnlock()
	if m, ok := renderCache[jobID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllRenderMetrics returns copies of the values of all tracked jobs.
func GetAllRenderMetrics() map[string]*RenderMetrics {
	renderCacheMu.RLock()
	defer renderCacheMu.RUnlock()
	result := make(map[string]*RenderMetrics, len(renderCache))
	for id, m := range renderCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

// IncRenders counts a finished job by its final state.
func IncRenders(state string) {
	rendersTotal.WithLabelValues(state).Inc()
}

// ObserveProcess records a finished child process.
// Outcome is one of "exited", "killed" or "spawn_failed".
func ObserveProcess(outcome string, d time.Duration) {
	processRuns.WithLabelValues(outcome).Inc()
	if d > 0 {
		processDuration.Observe(d.Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
