package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/parse"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

type Metrics struct {
	FetchSeconds     *prometheus.HistogramVec
	FetchBytesTotal  *prometheus.CounterVec
	FetchErrorsTotal *prometheus.CounterVec
	Matches          *prometheus.GaugeVec

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	metrics := &Metrics{
		FetchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arrivals_fetch_seconds",
				Help:    "Time to download a GTFS Realtime feed",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		FetchBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrivals_fetch_bytes_total",
				Help: "Bytes downloaded per endpoint",
			},
			[]string{"endpoint"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrivals_fetch_errors_total",
				Help: "Failed feed fetches and decodes, by kind (network, status or decode)",
			},
			[]string{"endpoint", "kind"},
		),
		Matches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arrivals_matches",
				Help: "Upcoming arrivals found for a station on the most recent poll",
			},
			[]string{"station"},
		),
		registry: registry,
	}

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arrivals_build_info",
			Help: "Build metadata",
		},
		[]string{"version", "git_commit"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		metrics.FetchSeconds,
		metrics.FetchBytesTotal,
		metrics.FetchErrorsTotal,
		metrics.Matches,
	)

	buildInfo.WithLabelValues(Version, GitCommit).Set(1)

	return metrics
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Records the outcome of a pipeline run. Fetch failures are counted
// by the instrumented downloader, so only decode failures are
// counted here.
func (m *Metrics) ObserveArrivals(endpoint string, stationID string, matches int, err error) {
	if err != nil {
		if errors.Is(err, parse.ErrMalformed) {
			m.FetchErrorsTotal.WithLabelValues(endpoint, "decode").Inc()
		}
		return
	}
	m.Matches.WithLabelValues(stationID).Set(float64(matches))
}

type instrumented struct {
	downloader.Downloader
	metrics *Metrics
}

// Wraps a Downloader, timing and counting every request.
func Instrument(d downloader.Downloader, m *Metrics) downloader.Downloader {
	return &instrumented{Downloader: d, metrics: m}
}

func (i *instrumented) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options downloader.GetOptions,
) ([]byte, error) {
	start := time.Now()
	body, err := i.Downloader.Get(ctx, url, headers, options)
	i.metrics.FetchSeconds.WithLabelValues(url).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := "network"
		if _, ok := downloader.StatusCode(err); ok {
			kind = "status"
		}
		i.metrics.FetchErrorsTotal.WithLabelValues(url, kind).Inc()
		return nil, err
	}

	i.metrics.FetchBytesTotal.WithLabelValues(url).Add(float64(len(body)))
	return body, nil
}
