package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "themebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration *prom.HistogramVec
	taskResults  *prom.CounterVec
	runDuration  *prom.HistogramVec
	filesWritten *prom.CounterVec
	reloads      *prom.CounterVec
	lrClients    prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of individual build tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Task results by outcome",
		}, []string{"task", "result"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of task compositions and watch-triggered rebuilds",
			Buckets:   prom.DefBuckets,
		}, []string{"composition"}),
		filesWritten: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Output files written per asset group",
		}, []string{"group"}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload broadcasts by kind",
		}, []string{"kind"}),
		lrClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.runDuration, pr.filesWritten, pr.reloads, pr.lrClients)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(composition string, d time.Duration) {
	p.runDuration.WithLabelValues(composition).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddFilesWritten(group string, n int) {
	p.filesWritten.WithLabelValues(group).Add(float64(n))
}

func (p *PrometheusRecorder) IncReload(kind string) {
	p.reloads.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	p.lrClients.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
