package controller

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
	"github.com/WirelessCar/b2-operator/internal/authorization"
	"github.com/WirelessCar/b2-operator/internal/metrics"
)

// errorPolicy handles failures outside the authorization outcomes. The error is logged and
// surfaced as an event, and the request is retried after a fixed delay. A nil error is
// returned so the workqueue rate limiter does not override the delay.
func (r *AccountReconciler) errorPolicy(ctx context.Context, account *b2v1.Account, err error) ctrl.Result {
	log := logf.FromContext(ctx)

	log.Error(err, "Reconciliation failed", "requeueAfter", authorization.ErrorRequeueAfter.String())
	if account != nil {
		r.recorder.Eventf(account, nil, corev1.EventTypeWarning, reasonReconcileErrored, actionReconcile, "%s", err.Error())
	}
	metrics.ReconcileTotal.WithLabelValues(metrics.ControllerAccount, metrics.ResultError).Inc()

	return ctrl.Result{RequeueAfter: authorization.ErrorRequeueAfter}
}
