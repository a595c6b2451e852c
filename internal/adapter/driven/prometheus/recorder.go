// Package prometheus implements the JobRecorder port with Prometheus metrics
// that can be pushed to a Pushgateway at the end of a batch invocation.
package prometheus

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobRecorder = (*Recorder)(nil)

const namespace = "isitmaintained"

// Recorder implements driven.JobRecorder using a dedicated Prometheus registry.
type Recorder struct {
	registry        *prom.Registry
	refreshDuration *prom.HistogramVec
	refreshResults  *prom.CounterVec
	lastSuccess     prom.Gauge
	skipped         prom.Counter
	clock           clockwork.Clock
}

// NewRecorder creates a Recorder and registers its metrics on reg. A nil reg
// gets a fresh registry and a nil clock uses the real clock.
func NewRecorder(reg *prom.Registry, clock clockwork.Clock) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	r := &Recorder{
		registry: reg,
		refreshDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "statistics_refresh_duration_seconds",
			Help:      "Duration of a repository statistics refresh",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"result"}),
		refreshResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_refresh_total",
			Help:      "Repository statistics refreshes by repository and result",
		}, []string{"repo", "result"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "statistics_refresh_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful statistics refresh",
		}),
		skipped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_update_skipped_total",
			Help:      "Update invocations skipped because another process held the lock",
		}),
		clock: clock,
	}

	reg.MustRegister(r.refreshDuration, r.refreshResults, r.lastSuccess, r.skipped)
	return r
}

// ObserveRefresh records one refresh.
func (r *Recorder) ObserveRefresh(repoFullName string, d time.Duration, success bool) {
	res := "failed"
	if success {
		res = "success"
		r.lastSuccess.Set(float64(r.clock.Now().Unix()))
	}
	r.refreshDuration.WithLabelValues(res).Observe(d.Seconds())
	r.refreshResults.WithLabelValues(repoFullName, res).Inc()
}

// IncSkipped records a skipped invocation.
func (r *Recorder) IncSkipped() {
	r.skipped.Inc()
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Push sends the collected metrics to the Pushgateway at url, replacing the
// metrics previously pushed under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
