// Package metrics defines the Prometheus collectors of the operator and
// registers them with the controller-runtime metrics registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// Namespace is the Prometheus metrics namespace for b2-operator
	Namespace = "b2_operator"
)

var (
	// ReconcileTotal counts reconciliations per controller and result
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconcile_total",
			Help:      "Total number of reconciliations per controller",
		},
		[]string{"controller", "result"},
	)

	// AuthorizeTotal counts B2 authorize calls per classified outcome
	AuthorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authorize_total",
			Help:      "Total number of B2 authorize calls per outcome category",
		},
		[]string{"category"},
	)

	// AuthorizeDuration measures the duration of B2 authorize calls in seconds
	AuthorizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "authorize_duration_seconds",
			Help:      "Duration of B2 authorize calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// CachedAuthorizations tracks the number of authorizations held in memory
	CachedAuthorizations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cached_authorizations",
			Help:      "Number of B2 authorizations currently cached",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		ReconcileTotal,
		AuthorizeTotal,
		AuthorizeDuration,
		CachedAuthorizations,
	)
}

// Reconcile results
const (
	ResultAuthorized = "authorized"
	ResultCached     = "cached"
	ResultFailed     = "failed"
	ResultError      = "error"
	ResultSkipped    = "skipped"
)

// ControllerAccount is the controller label value of the Account reconciler
const ControllerAccount = "account"
