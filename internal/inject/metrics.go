package inject

import (
	"bluticconsent/internal/consent"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	diagnostics *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		diagnostics: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "consent_diagnostics_total",
			Help: "Consent banner evaluations by outcome.",
		}, []string{"severity", "kind"}),
	}
}

func (m *Metrics) observe(d consent.Diagnostic) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(d.Severity.String(), kindLabel(d.Kind)).Inc()
}

func kindLabel(err error) string {
	switch err {
	case nil:
		return "injected"
	case consent.ErrSkipped:
		return "skipped"
	case consent.ErrInvalidConfiguration:
		return "invalid_configuration"
	case consent.ErrInjectionFailure:
		return "injection_failure"
	default:
		return "unknown"
	}
}
