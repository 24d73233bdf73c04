package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RentalMetrics records rental engine activity.
type RentalMetrics struct {
	created      *prometheus.CounterVec
	accessChecks *prometheus.CounterVec
	settlements  *prometheus.CounterVec
	refundCents  *prometheus.HistogramVec
	violations   *prometheus.CounterVec
	subAcquire   *prometheus.CounterVec
}

// NewRentalMetrics registers the rental engine metrics on the provided registerer.
func NewRentalMetrics(reg prometheus.Registerer) *RentalMetrics {
	if reg == nil {
		return &RentalMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rentals_created_total",
		Help: "Rentals created by delivery mode and tier.",
	}, []string{"mode", "tier"})
	accessChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_access_checks_total",
		Help: "Access check outcomes by delivery mode.",
	}, []string{"mode", "result"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_settlements_total",
		Help: "Hardcopy settlements by condition grade.",
	}, []string{"grade"})
	refundCents := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_settlement_refund_cents",
		Help:    "Final refund amounts in cents.",
		Buckets: prometheus.ExponentialBuckets(50, 2.5, 10),
	}, []string{"grade"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_violations_reported_total",
		Help: "Security violation reports by event kind.",
	}, []string{"kind"})
	subAcquire := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_acquisitions_total",
		Help: "Subscription slot acquisition outcomes.",
	}, []string{"result"})
	reg.MustRegister(created, accessChecks, settlements, refundCents, violations, subAcquire)
	return &RentalMetrics{
		created:      created,
		accessChecks: accessChecks,
		settlements:  settlements,
		refundCents:  refundCents,
		violations:   violations,
		subAcquire:   subAcquire,
	}
}

// IncCreated increments the created counter for a mode and tier.
func (r *RentalMetrics) IncCreated(mode, tier string) {
	if r == nil || r.created == nil {
		return
	}
	r.created.WithLabelValues(normalizeLabel(mode), normalizeLabel(tier)).Inc()
}

// IncAccessCheck increments the access check counter with a granted or denied result.
func (r *RentalMetrics) IncAccessCheck(mode string, granted bool) {
	if r == nil || r.accessChecks == nil {
		return
	}
	result := "denied"
	if granted {
		result = "granted"
	}
	r.accessChecks.WithLabelValues(normalizeLabel(mode), result).Inc()
}

// ObserveSettlement records a completed settlement and its refund amount.
func (r *RentalMetrics) ObserveSettlement(grade string, refundCents int64) {
	if r == nil || r.settlements == nil {
		return
	}
	label := normalizeLabel(grade)
	r.settlements.WithLabelValues(label).Inc()
	r.refundCents.WithLabelValues(label).Observe(float64(refundCents))
}

// IncViolation increments the violation counter for the reported kind.
func (r *RentalMetrics) IncViolation(kind string) {
	if r == nil || r.violations == nil {
		return
	}
	r.violations.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSubscriptionAcquire increments the subscription acquisition counter.
func (r *RentalMetrics) IncSubscriptionAcquire(acquired bool) {
	if r == nil || r.subAcquire == nil {
		return
	}
	result := "rejected"
	if acquired {
		result = "acquired"
	}
	r.subAcquire.WithLabelValues(result).Inc()
}
