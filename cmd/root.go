package main

import (
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
)

// version is set at build time
var version = "dev"

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(b2v1.AddToScheme(scheme))
	return scheme
}

// newRootCmd runs the operator when called without a subcommand.
func newRootCmd() *cobra.Command {
	opts := newStartOptions()

	rootCmd := &cobra.Command{
		Use:          "b2-operator",
		Short:        "Kubernetes operator managing Backblaze B2 accounts",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context())
		},
	}
	opts.addFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newStartCmd(opts),
		newCRDsCmd(),
		newExampleResourcesCmd(),
	)
	return rootCmd
}
