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
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ktypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/events"
	clocktesting "k8s.io/utils/clock/testing"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
	"github.com/WirelessCar/b2-operator/internal/authorization"
	"github.com/WirelessCar/b2-operator/internal/b2"
	"github.com/WirelessCar/b2-operator/internal/credential"
	"github.com/WirelessCar/b2-operator/internal/k8s/secret"
)

const (
	accountNamespace = "test-namespace"
	secretName       = "test-credentials"
)

var _ = Describe("Account Controller", func() {
	var (
		ctx            context.Context
		k8sClient      client.Client
		authorizerMock *AuthorizerMock
		cache          *authorization.Cache
		fakeClock      *clocktesting.FakePassiveClock
		fakeRecorder   *events.FakeRecorder
		reconciler     *AccountReconciler
	)

	newReconciler := func(c client.Client) *AccountReconciler {
		return NewAccountReconciler(
			c,
			testScheme,
			credential.NewResolver(secret.NewClient(c)),
			authorizerMock,
			cache,
			fakeRecorder,
			WithClock(fakeClock),
		)
	}

	BeforeEach(func() {
		ctx = context.Background()
		authorizerMock = &AuthorizerMock{}
		cache = authorization.NewCache()
		fakeClock = clocktesting.NewFakePassiveClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
		fakeRecorder = events.NewFakeRecorder(10)

		k8sClient = fake.NewClientBuilder().
			WithScheme(testScheme).
			WithObjects(
				newCredentialSecret(secretName, "key-1", "app-1"),
				newAccount("test", secretName),
			).
			Build()
		reconciler = newReconciler(k8sClient)
	})

	AfterEach(func() {
		authorizerMock.AssertExpectations(GinkgoT())
	})

	request := func(name string) reconcile.Request {
		return reconcile.Request{NamespacedName: ktypes.NamespacedName{Name: name, Namespace: accountNamespace}}
	}

	Context("When the credential is valid", func() {
		It("should authorize once and then serve from the cache", func() {
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").
				Return(&b2.Authorization{AccountID: "acc-1", AuthorizationToken: "token"}, nil).
				Once()

			By("reconciling the account for the first time")
			result, err := reconciler.Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(time.Second))

			cached, ok := cache.Get("key-1")
			Expect(ok).To(BeTrue())
			Expect(cached.Authorization.AccountID).To(Equal("acc-1"))
			Expect(cached.CreatedAt).To(Equal(fakeClock.Now()))

			By("reconciling the account again")
			fakeClock.SetTime(fakeClock.Now().Add(10 * time.Minute))
			result, err = reconciler.Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(300 * time.Second))
			Expect(cache.Len()).To(Equal(1))

			Expect(fakeRecorder.Events).To(BeEmpty())
		})

		It("should share the cached authorization between accounts using the same key id", func() {
			Expect(k8sClient.Create(ctx, newAccount("other", secretName))).To(Succeed())
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").
				Return(&b2.Authorization{AccountID: "acc-1"}, nil).
				Once()

			result, err := reconciler.Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(time.Second))

			result, err = reconciler.Reconcile(ctx, request("other"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(authorization.AuthorizedRequeueAfter))
		})
	})

	Context("When authorization fails", func() {
		DescribeTable("should requeue according to the failure category",
			func(authErr error, expected time.Duration) {
				authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").Return(nil, authErr).Once()

				result, err := reconciler.Reconcile(ctx, request("test"))
				Expect(err).NotTo(HaveOccurred())
				Expect(result.RequeueAfter).To(Equal(expected))
				Expect(cache.Contains("key-1")).To(BeFalse())

				By("asserting a warning event was recorded")
				Expect(fakeRecorder.Events).To(HaveLen(1))
				event := <-fakeRecorder.Events
				Expect(event).To(ContainSubstring(corev1.EventTypeWarning))
				Expect(event).To(ContainSubstring(reasonAuthorizationFailed))
			},
			Entry("unauthorized",
				&b2.APIError{Status: 401, Code: b2.CodeUnauthorized, Message: "bad key"}, 300*time.Second),
			Entry("other service error",
				&b2.APIError{Status: 400, Code: b2.CodeBadRequest, Message: "bad request"}, 60*time.Second),
			Entry("transport error",
				&b2.TransportError{Op: "authorize", Err: errors.New("connection refused")}, 30*time.Second),
			Entry("unknown error",
				errors.New("something else"), 60*time.Second),
		)

		It("should authorize again on the next reconciliation", func() {
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").
				Return(nil, &b2.TransportError{Op: "authorize", Err: errors.New("timeout")}).
				Once()
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").
				Return(&b2.Authorization{AccountID: "acc-1"}, nil).
				Once()

			result, err := reconciler.Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(30 * time.Second))

			result, err = reconciler.Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(time.Second))
			Expect(cache.Contains("key-1")).To(BeTrue())
		})
	})

	Context("When the authorizer returns no authorization", func() {
		It("should treat the outcome as unknown and cache nothing", func() {
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").Return(nil, nil).Once()

			result, err := reconciler.ReconcileAccount(ctx, newAccount("test", secretName))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(authorization.RequeueAfter(authorization.UnknownError)))
			Expect(cache.Len()).To(BeZero())

			Expect(fakeRecorder.Events).To(HaveLen(1))
			Expect(<-fakeRecorder.Events).To(ContainSubstring(ErrEmptyAuthorization.Error()))
		})
	})

	Context("When the credential cannot be resolved", func() {
		It("should apply the error policy when the secret is missing", func() {
			Expect(k8sClient.Create(ctx, newAccount("orphan", "does-not-exist"))).To(Succeed())

			result, err := reconciler.Reconcile(ctx, request("orphan"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(authorization.ErrorRequeueAfter))

			Expect(fakeRecorder.Events).To(HaveLen(1))
			Expect(<-fakeRecorder.Events).To(ContainSubstring(reasonReconcileErrored))
		})

		It("should return a resolution error from ReconcileAccount when a field is missing", func() {
			Expect(k8sClient.Create(ctx, &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{Name: "partial", Namespace: accountNamespace},
				Data:       map[string][]byte{"key_id": []byte("key-2")},
			})).To(Succeed())
			account := newAccount("partial", "partial")

			_, err := reconciler.ReconcileAccount(ctx, account)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, credential.ErrResolution)).To(BeTrue())
			Expect(errors.Is(err, credential.ErrFieldNotFound)).To(BeTrue())
		})
	})

	Context("When the account cannot be loaded", func() {
		It("should return an empty result when the account does not exist", func() {
			result, err := reconciler.Reconcile(ctx, request("missing"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(reconcile.Result{}))
			Expect(fakeRecorder.Events).To(BeEmpty())
		})

		It("should apply the error policy on other read errors", func() {
			failing := fake.NewClientBuilder().
				WithScheme(testScheme).
				WithInterceptorFuncs(interceptor.Funcs{
					Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
						return errors.New("api server unavailable")
					},
				}).
				Build()

			result, err := newReconciler(failing).Reconcile(ctx, request("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(time.Second))
			Expect(fakeRecorder.Events).To(BeEmpty())
		})
	})

	Context("Error policy", func() {
		It("should requeue after a fixed delay without returning the error", func() {
			account := newAccount("test", secretName)

			result := reconciler.errorPolicy(ctx, account, errors.New("boom"))
			Expect(result).To(Equal(reconcile.Result{RequeueAfter: time.Second}))
			Expect(<-fakeRecorder.Events).To(ContainSubstring("boom"))
		})
	})

	Context("When many accounts are reconciled concurrently", func() {
		It("should not block other key ids while an authorize call is in flight", func() {
			Expect(k8sClient.Create(ctx, newCredentialSecret("slow", "key-slow", "app-slow"))).To(Succeed())
			Expect(k8sClient.Create(ctx, newAccount("slow", "slow"))).To(Succeed())

			entered := make(chan struct{})
			release := make(chan struct{})
			authorizerMock.On("Authorize", mock.Anything, "key-slow", "app-slow").
				Run(func(mock.Arguments) {
					close(entered)
					<-release
				}).
				Return(&b2.Authorization{AccountID: "acc-slow"}, nil).
				Once()
			authorizerMock.On("Authorize", mock.Anything, "key-1", "app-1").
				Return(&b2.Authorization{AccountID: "acc-1"}, nil).
				Once()

			slowDone := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := reconciler.Reconcile(ctx, request("slow"))
				slowDone <- err
			}()
			Eventually(entered).Should(BeClosed())

			By("reconciling another key id while the first call is blocked")
			fastDone := make(chan reconcile.Result, 1)
			go func() {
				defer GinkgoRecover()
				result, err := reconciler.Reconcile(ctx, request("test"))
				Expect(err).NotTo(HaveOccurred())
				fastDone <- result
			}()
			Eventually(fastDone).Should(Receive(Equal(reconcile.Result{RequeueAfter: time.Second})))
			Expect(cache.Contains("key-1")).To(BeTrue())
			Expect(cache.Contains("key-slow")).To(BeFalse())

			close(release)
			Eventually(slowDone).Should(Receive(BeNil()))
			Expect(cache.Contains("key-slow")).To(BeTrue())
		})

		It("should cache one authorization per key id", func() {
			const accounts = 16
			authorizerMock.On("Authorize", mock.Anything, mock.Anything, mock.Anything).
				Return(&b2.Authorization{AccountID: "acc"}, nil).
				Times(accounts)

			for i := range accounts {
				name := fmt.Sprintf("concurrent-%d", i)
				Expect(k8sClient.Create(ctx, newCredentialSecret(name, fmt.Sprintf("key-c%d", i), "app"))).To(Succeed())
				Expect(k8sClient.Create(ctx, newAccount(name, name))).To(Succeed())
			}

			results := make([]reconcile.Result, accounts)
			errs := make([]error, accounts)
			var wg sync.WaitGroup
			for i := range accounts {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					results[i], errs[i] = reconciler.Reconcile(ctx, request(fmt.Sprintf("concurrent-%d", i)))
				}()
			}
			wg.Wait()

			for i := range accounts {
				Expect(errs[i]).NotTo(HaveOccurred())
				Expect(results[i].RequeueAfter).To(Equal(time.Second))
			}
			Expect(cache.Len()).To(Equal(accounts))
		})
	})
})

func newCredentialSecret(name, keyID, applicationKey string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: accountNamespace},
		Data: map[string][]byte{
			"key_id":          []byte(keyID),
			"application_key": []byte(applicationKey),
		},
	}
}

func newAccount(name, secretRef string) *b2v1.Account {
	return &b2v1.Account{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: accountNamespace},
		Spec: b2v1.AccountSpec{
			CredentialReference: b2v1.AccountSecretReference{
				Name:                secretRef,
				Namespace:           accountNamespace,
				KeyIDField:          "key_id",
				ApplicationKeyField: "application_key",
			},
		},
	}
}

// MOCKS

type AuthorizerMock struct {
	mock.Mock
}

func (a *AuthorizerMock) Authorize(ctx context.Context, keyID string, applicationKey string) (*b2.Authorization, error) {
	args := a.Called(ctx, keyID, applicationKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*b2.Authorization), args.Error(1)
}
