// Package metrics exposes prometheus collectors for index builds and
// cluster extraction. A nil *Collector is valid and records nothing.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stationcluster"

// Collector groups the build and extraction metrics
type Collector struct {
	buildsTotal     prometheus.Counter
	pointsInserted  prometheus.Counter
	pointsDropped   prometheus.Counter
	buildDuration   prometheus.Histogram
	extractDuration *prometheus.HistogramVec
	clustersEmitted *prometheus.HistogramVec
	indexedPoints   prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		buildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total quadtree builds",
		}),
		pointsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "points_inserted_total",
			Help:      "Total points inserted into a quadtree",
		}),
		pointsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "points_dropped_total",
			Help:      "Total points dropped for lying outside the valid domain",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Quadtree build latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		extractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "Cluster extraction latency in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"zoom"}),
		clustersEmitted: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "clusters_emitted",
			Help:      "Markers returned per extraction",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"zoom"}),
		indexedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "points",
			Help:      "Points held by the published quadtree",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.buildsTotal,
			c.pointsInserted,
			c.pointsDropped,
			c.buildDuration,
			c.extractDuration,
			c.clustersEmitted,
			c.indexedPoints,
		)
	}
	return c
}

// ObserveBuild records one completed build
func (c *Collector) ObserveBuild(inserted, dropped int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.buildsTotal.Inc()
	c.pointsInserted.Add(float64(inserted))
	c.pointsDropped.Add(float64(dropped))
	c.buildDuration.Observe(elapsed.Seconds())
	c.indexedPoints.Set(float64(inserted))
}

// ObserveExtract records one extraction. Zoom is bucketed to its integer part.
func (c *Collector) ObserveExtract(zoom float64, clusters int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := ZoomLabel(zoom)
	c.extractDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	c.clustersEmitted.WithLabelValues(label).Observe(float64(clusters))
}

// ZoomLabel maps a continuous zoom to a bounded label value
func ZoomLabel(zoom float64) string {
	switch {
	case math.IsNaN(zoom):
		return "nan"
	case zoom < 0:
		return "0"
	case zoom > 22:
		return "22"
	}
	return strconv.Itoa(int(zoom))
}

// Handler serves the registry in the prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
