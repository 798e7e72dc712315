package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/WirelessCar/b2-operator/internal/authorization"
	"github.com/WirelessCar/b2-operator/internal/b2"
	"github.com/WirelessCar/b2-operator/internal/controller"
	"github.com/WirelessCar/b2-operator/internal/credential"
	"github.com/WirelessCar/b2-operator/internal/k8s/secret"
	"github.com/WirelessCar/b2-operator/internal/tracing"
)

const (
	envB2APIURL      = "B2_API_URL"
	leaderElectionID = "b2-operator.backblaze.b2"
	eventSource      = "b2-operator"
)

var ErrInvalidConcurrency = errors.New("account concurrency must be at least 1")

type startOptions struct {
	metricsAddr          string
	probeAddr            string
	enableLeaderElection bool
	accountConcurrency   int
	b2APIURL             string
	tracing              tracing.Config
	zapOpts              zap.Options
}

func newStartOptions() *startOptions {
	return &startOptions{
		zapOpts: zap.Options{Development: true},
	}
}

func (o *startOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.metricsAddr, "metrics-bind-address", "0", "The address the metric endpoint binds to. "+
		"Use 0 to disable the metrics server.")
	fs.StringVar(&o.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	fs.BoolVar(&o.enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager. "+
		"Enabling this will ensure there is only one active controller manager.")
	fs.IntVar(&o.accountConcurrency, "account-concurrency", 4, "Number of Accounts reconciled in parallel.")
	fs.StringVar(&o.b2APIURL, "b2-api-url", envOrDefault(envB2APIURL, b2.DefaultAPIURL), "Base URL of the B2 native API. "+
		"Defaults to the "+envB2APIURL+" environment variable when set.")
	fs.BoolVar(&o.tracing.Enabled, "tracing-enabled", false, "Export traces over OTLP gRPC.")
	fs.StringVar(&o.tracing.Endpoint, "tracing-endpoint", "", "OTLP collector endpoint, e.g. otel-collector:4317.")
	fs.Float64Var(&o.tracing.SamplingRate, "tracing-sampling-rate", 1.0, "Ratio of traces to sample (0.0 to 1.0).")
	fs.BoolVar(&o.tracing.Insecure, "tracing-insecure", false, "Disable TLS for the OTLP exporter connection.")

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	o.zapOpts.BindFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

func (o *startOptions) validate() error {
	if o.accountConcurrency < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidConcurrency, o.accountConcurrency)
	}
	if o.b2APIURL == "" {
		return errors.New("b2 api url must not be empty")
	}
	return nil
}

func (o *startOptions) run(ctx context.Context) error {
	if err := o.validate(); err != nil {
		return err
	}

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&o.zapOpts)))
	setupLog := ctrl.Log.WithName("setup")
	setupLog.Info("starting b2-operator",
		"version", version,
		"accountConcurrency", o.accountConcurrency,
		"b2APIURL", o.b2APIURL,
		"leaderElection", o.enableLeaderElection,
		"tracing", o.tracing.Enabled,
	)

	tp, err := tracing.Setup(ctx, o.tracing, version)
	if err != nil {
		return fmt.Errorf("unable to set up tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			setupLog.Error(err, "failed to shut down tracer provider")
		}
	}()

	cfg, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("unable to load kubeconfig: %w", err)
	}

	mgr, err := ctrl.NewManager(cfg, ctrl.Options{
		Scheme: newScheme(),
		Metrics: metricsserver.Options{
			BindAddress: o.metricsAddr,
		},
		HealthProbeBindAddress: o.probeAddr,
		LeaderElection:         o.enableLeaderElection,
		LeaderElectionID:       leaderElectionID,
	})
	if err != nil {
		return fmt.Errorf("unable to create manager: %w", err)
	}

	b2Client := b2.NewClient(o.b2APIURL, b2.WithTracerProvider(tp.TracerProvider()))
	resolver := credential.NewResolver(secret.NewClient(mgr.GetAPIReader()))

	reconciler := controller.NewAccountReconciler(
		mgr.GetClient(),
		mgr.GetScheme(),
		resolver,
		b2Client,
		authorization.NewCache(),
		mgr.GetEventRecorder(eventSource),
		controller.WithTracerProvider(tp.TracerProvider()),
	)
	if err := reconciler.SetupWithManager(mgr, o.accountConcurrency); err != nil {
		return fmt.Errorf("unable to set up Account controller: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("problem running manager: %w", err)
	}
	return nil
}

func newStartCmd(opts *startOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context())
		},
	}
}

func envOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
