// Package metrics exposes Prometheus counters for user actions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"label-ecg/internal/annotation"
)

const namespace = "labelecg"

// Metrics holds the application collectors. A nil *Metrics is a no-op.
type Metrics struct {
	logins      *prometheus.CounterVec
	annotations *prometheus.CounterVec
	navigations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		annotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_total",
			Help:      "Annotations saved, by status and whether an earlier entry was replaced.",
		}, []string{"status", "replaced"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_navigations_total",
			Help:      "Record navigation actions by direction.",
		}, []string{"direction"}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.annotations, m.navigations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterSessionGauge exposes the number of live sessions as reported by count.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Browser sessions currently held in memory.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) LoginAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) AnnotationSaved(status annotation.Status, replaced bool) {
	if m == nil {
		return
	}
	m.annotations.WithLabelValues(string(status), strconv.FormatBool(replaced)).Inc()
}

func (m *Metrics) Navigated(direction string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(direction).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
