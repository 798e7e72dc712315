/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/events"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
	"github.com/WirelessCar/b2-operator/internal/authorization"
	"github.com/WirelessCar/b2-operator/internal/b2"
	"github.com/WirelessCar/b2-operator/internal/credential"
	"github.com/WirelessCar/b2-operator/internal/metrics"
	"github.com/WirelessCar/b2-operator/internal/tracing"
)

// ErrEmptyAuthorization is reported when an Authorizer returns neither an authorization nor an error.
var ErrEmptyAuthorization = errors.New("authorizer returned no authorization")

type CredentialResolver interface {
	Resolve(ctx context.Context, ref b2v1.AccountSecretReference) (credential.Credential, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, keyID string, applicationKey string) (*b2.Authorization, error)
}

type Option func(*AccountReconciler)

// WithClock overrides the clock used to timestamp cached authorizations.
func WithClock(c clock.PassiveClock) Option {
	return func(r *AccountReconciler) {
		r.clock = c
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *AccountReconciler) {
		r.tracer = tp.Tracer(tracing.TracerName)
	}
}

// AccountReconciler reconciles an Account object
type AccountReconciler struct {
	client.Client
	Scheme     *runtime.Scheme
	resolver   CredentialResolver
	authorizer Authorizer
	cache      *authorization.Cache
	recorder   events.EventRecorder
	clock      clock.PassiveClock
	tracer     trace.Tracer
}

func NewAccountReconciler(
	k8sClient client.Client,
	scheme *runtime.Scheme,
	resolver CredentialResolver,
	authorizer Authorizer,
	cache *authorization.Cache,
	recorder events.EventRecorder,
	opts ...Option,
) *AccountReconciler {
	r := &AccountReconciler{
		Client:     k8sClient,
		Scheme:     scheme,
		resolver:   resolver,
		authorizer: authorizer,
		cache:      cache,
		recorder:   recorder,
		clock:      clock.RealClock{},
		tracer:     otel.Tracer(tracing.TracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// +kubebuilder:rbac:groups=backblaze.b2,resources=accounts,verbs=get;list;watch
// +kubebuilder:rbac:groups=core,resources=secrets,verbs=get
// +kubebuilder:rbac:groups=events.k8s.io,resources=events,verbs=create;patch

// Reconcile loads the Account and hands it to ReconcileAccount. Failures that are not
// authorization outcomes go through the error policy and are retried after a fixed delay.
func (r *AccountReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx)

	ctx, span := r.tracer.Start(ctx, "AccountReconciler.Reconcile",
		trace.WithAttributes(
			tracing.AttrController.String(metrics.ControllerAccount),
			tracing.AttrAccount.String(req.Name),
			tracing.AttrNamespace.String(req.Namespace),
		),
	)
	defer span.End()

	account := &b2v1.Account{}
	if err := r.Get(ctx, req.NamespacedName, account); err != nil {
		if apierrors.IsNotFound(err) {
			log.Info("resource not found. Ignoring since object must be deleted")
			metrics.ReconcileTotal.WithLabelValues(metrics.ControllerAccount, metrics.ResultSkipped).Inc()
			return ctrl.Result{}, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return r.errorPolicy(ctx, nil, fmt.Errorf("failed to get account: %w", err)), nil
	}

	result, err := r.ReconcileAccount(ctx, account)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return r.errorPolicy(ctx, account, err), nil
	}
	return result, nil
}

// ReconcileAccount authorizes the Account's credential against B2 unless an authorization
// for the key id is already cached, and returns when the Account should be looked at again.
func (r *AccountReconciler) ReconcileAccount(ctx context.Context, account *b2v1.Account) (ctrl.Result, error) {
	log := logf.FromContext(ctx)

	cred, err := r.resolver.Resolve(ctx, account.Spec.CredentialReference)
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("failed to resolve credential for account %s/%s: %w", account.Namespace, account.Name, err)
	}

	if cached, ok := r.cache.Get(cred.KeyID); ok {
		log.Info("Account already authorized",
			"keyID", cred.KeyID,
			"accountID", cached.Authorization.AccountID,
			"age", cached.Age(r.clock.Now()).String(),
		)
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerAccount, metrics.ResultCached).Inc()
		return ctrl.Result{RequeueAfter: authorization.AuthorizedRequeueAfter}, nil
	}

	// No lock is held while the remote call is in flight
	start := r.clock.Now()
	auth, authErr := r.authorizer.Authorize(ctx, cred.KeyID, cred.ApplicationKey)
	metrics.AuthorizeDuration.Observe(r.clock.Since(start).Seconds())
	if authErr == nil && auth == nil {
		authErr = ErrEmptyAuthorization
	}

	category := authorization.Classify(authErr)
	metrics.AuthorizeTotal.WithLabelValues(category.String()).Inc()
	trace.SpanFromContext(ctx).SetAttributes(tracing.AttrCategory.String(category.String()))
	requeueAfter := authorization.RequeueAfter(category)

	if category != authorization.Success {
		log.Error(authErr, "Failed to authorize account",
			"keyID", cred.KeyID,
			"category", category.String(),
			"requeueAfter", requeueAfter.String(),
		)
		r.recorder.Eventf(account, nil, corev1.EventTypeWarning, reasonAuthorizationFailed, actionAuthorize,
			"authorization failed (%s): %s", category, authErr.Error())
		metrics.ReconcileTotal.WithLabelValues(metrics.ControllerAccount, metrics.ResultFailed).Inc()
		return ctrl.Result{RequeueAfter: requeueAfter}, nil
	}

	r.cache.Insert(cred.KeyID, authorization.TimestampedAuthorization{
		Authorization: auth,
		CreatedAt:     r.clock.Now(),
	})
	metrics.CachedAuthorizations.Set(float64(r.cache.Len()))
	metrics.ReconcileTotal.WithLabelValues(metrics.ControllerAccount, metrics.ResultAuthorized).Inc()

	log.Info("Account authorized", "keyID", cred.KeyID, "accountID", auth.AccountID, "apiURL", auth.APIURL)
	return ctrl.Result{RequeueAfter: requeueAfter}, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *AccountReconciler) SetupWithManager(mgr ctrl.Manager, concurrency int) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&b2v1.Account{}).
		Named(metrics.ControllerAccount).
		WithEventFilter(predicate.GenerationChangedPredicate{}).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: concurrency,
		}).
		Complete(r)
}
