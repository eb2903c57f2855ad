package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/tuner"
)

// Collector exports frame, tuner and stage timings on its own registry.
// It satisfies fluid.StageObserver and tuner.Observer.
type Collector struct {
	registry *prometheus.Registry

	frameSeconds prometheus.Histogram
	resolution   prometheus.Gauge
	solverSteps  prometheus.Gauge
	frames       prometheus.Counter
	resizes      prometheus.Counter
	tunes        *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
	diagnostics  *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fluidsim_frame_seconds",
			Help:    "Wall time of one simulation step",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		resolution: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluidsim_resolution",
			Help: "Current interior grid side N",
		}),
		solverSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluidsim_solver_steps",
			Help: "Current relaxation sweep count",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluidsim_frames_total",
			Help: "Frames stepped",
		}),
		resizes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluidsim_resizes_total",
			Help: "Resolution changes made by the tuner",
		}),
		tunes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluidsim_tune_passes_total",
			Help: "Tuner passes by direction",
		}, []string{"direction"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluidsim_stage_seconds",
			Help:    "Wall time of one dispatched stage",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"stage"}),
		diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fluidsim_diagnostic",
			Help: "Latest value of each field diagnostic",
		}, []string{"name"}),
	}
	c.registry.MustRegister(
		c.frameSeconds, c.resolution, c.solverSteps, c.frames,
		c.resizes, c.tunes, c.stageSeconds, c.diagnostics,
	)
	return c
}

func (c *Collector) ObserveFrame(seconds float64, m fluid.Metrics) {
	c.frameSeconds.Observe(seconds)
	c.frames.Inc()
	c.resolution.Set(float64(m.N))
	c.solverSteps.Set(float64(m.SolverSteps))
}

func (c *Collector) ObserveStage(label string, d time.Duration) {
	c.stageSeconds.WithLabelValues(label).Observe(d.Seconds())
}

func (c *Collector) ObserveTune(d tuner.Decision) {
	c.tunes.WithLabelValues(d.Direction.String()).Inc()
	if d.Resized {
		c.resizes.Inc()
	}
	c.resolution.Set(float64(d.N))
	c.solverSteps.Set(float64(d.SolverSteps))
}

func (c *Collector) ObserveDiagnostics(ds []Diagnostic) {
	for _, d := range ds {
		c.diagnostics.WithLabelValues(d.Name()).Set(d.Value())
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NewServer serves the collector on /metrics.
func (c *Collector) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
