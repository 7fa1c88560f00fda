package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poimap_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "status"})
	POIsAddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poimap_pois_added_total",
		Help: "Total POIs appended to the store",
	})
	POIsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poimap_pois_removed_total",
		Help: "Total POIs removed from the store",
	})
	ValidationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poimap_validation_failures_total",
		Help: "Total candidate records rejected by the schema validator",
	})
	PersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poimap_persist_failures_total",
		Help: "Total failed full-table writes",
	})
	StoreSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "poimap_store_rows",
		Help: "Number of rows in the POI store",
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poimap_events_total",
		Help: "UI events dispatched to the interaction controller by outcome",
	}, []string{"event", "outcome"})
)

func init() {
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(POIsAddedTotal)
	prometheus.MustRegister(POIsRemovedTotal)
	prometheus.MustRegister(ValidationFailuresTotal)
	prometheus.MustRegister(PersistFailuresTotal)
	prometheus.MustRegister(StoreSize)
	prometheus.MustRegister(EventsTotal)
}

// Handler exposes the registered metrics on /metrics.
func Handler() http.Handler { return promhttp.Handler() }
