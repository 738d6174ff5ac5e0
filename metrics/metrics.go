package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Agreements holds the counters and histograms for the agreement lifecycle.
type Agreements struct {
	Created              prometheus.Counter
	CreateFailures       *prometheus.CounterVec
	Signatures           prometheus.Counter
	FullySigned          prometheus.Counter
	OrphanedUploads      prometheus.Counter
	TenancyActivationErr prometheus.Counter
	RenderDuration       prometheus.Histogram
	UploadDuration       prometheus.Histogram
	OutboxDispatched     *prometheus.CounterVec
}

// New registers the agreement metrics with reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Agreements {
	f := promauto.With(reg)
	return &Agreements{
		Created: f.NewCounter(prometheus.CounterOpts{
			Name: "rentfit_agreements_created_total",
			Help: "Total number of agreements created",
		}),
		CreateFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentfit_agreement_create_failures_total",
			Help: "Agreement creation failures by pipeline stage",
		}, []string{"stage"}),
		Signatures: f.NewCounter(prometheus.CounterOpts{
			Name: "rentfit_agreement_signatures_total",
			Help: "Total number of recorded signatures",
		}),
		FullySigned: f.NewCounter(prometheus.CounterOpts{
			Name: "rentfit_agreements_signed_total",
			Help: "Agreements that reached signer quorum",
		}),
		OrphanedUploads: f.NewCounter(prometheus.CounterOpts{
			Name: "rentfit_agreement_orphaned_uploads_total",
			Help: "Uploaded documents left without an agreement after compensation failed",
		}),
		TenancyActivationErr: f.NewCounter(prometheus.CounterOpts{
			Name: "rentfit_tenancy_activation_failures_total",
			Help: "Inline tenancy activations that failed after signing",
		}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentfit_agreement_render_duration_seconds",
			Help:    "Time spent rendering agreement documents",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		UploadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentfit_agreement_upload_duration_seconds",
			Help:    "Time spent uploading agreement documents",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		OutboxDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentfit_outbox_dispatched_total",
			Help: "Outbox messages dispatched by topic and result",
		}, []string{"topic", "result"}),
	}
}

func (m *Agreements) ObserveRender(start time.Time) {
	m.RenderDuration.Observe(time.Since(start).Seconds())
}

func (m *Agreements) ObserveUpload(start time.Time) {
	m.UploadDuration.Observe(time.Since(start).Seconds())
}

func (m *Agreements) IncCreateFailure(stage string) {
	m.CreateFailures.WithLabelValues(stage).Inc()
}

func (m *Agreements) IncOutbox(topic, result string) {
	m.OutboxDispatched.WithLabelValues(topic, result).Inc()
}
