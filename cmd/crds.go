package main

import (
	"github.com/spf13/cobra"

	"github.com/WirelessCar/b2-operator/internal/manifest"
)

func newCRDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crds",
		Short: "Print the CustomResourceDefinitions as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			crds := manifest.CRDs()
			objs := make([]any, 0, len(crds))
			for _, crd := range crds {
				objs = append(objs, crd)
			}
			return manifest.Print(cmd.OutOrStdout(), objs...)
		},
	}
}

func newExampleResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-resources",
		Short: "Print an example Account as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manifest.Print(cmd.OutOrStdout(), manifest.ExampleAccount())
		},
	}
}
