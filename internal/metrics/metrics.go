// Package metrics expõe contadores do pipeline no formato Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conversor"

// Metrics agrupa os coletores do serviço. Receptor nil é um no-op.
type Metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    prometheus.Histogram
	swept       prometheus.Counter
	sweepFailed prometheus.Counter
}

// New registra os coletores em um registry dedicado.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversões por resultado.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duração do pipeline de conversão.",
			Buckets:   prometheus.DefBuckets,
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Artefatos removidos pela retenção.",
		}),
		sweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failed_total",
			Help:      "Artefatos que a retenção não conseguiu remover.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.conversions,
		m.duration,
		m.swept,
		m.sweepFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registrar coletor: %w", err)
		}
	}
	return m, nil
}

// ObserveConversion conta a conversão pelo resultado (ok, cached ou a classe do erro).
func (m *Metrics) ObserveConversion(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveSweep acumula o resultado de uma varredura.
func (m *Metrics) ObserveSweep(deleted, failed int) {
	if m == nil {
		return
	}
	m.swept.Add(float64(deleted))
	m.sweepFailed.Add(float64(failed))
}

// Handler expõe o registry; sem métricas configuradas responde 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
