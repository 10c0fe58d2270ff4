package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Semantic query engine over typed facts and service operations",
		Long: `semquery answers queries for typed values by searching a graph built from a
schema of types and service operations, then invoking the operations along the
cheapest path that works.

Configuration is read from --config (YAML) and SEMQUERY_* environment
variables, for example SEMQUERY_PROJECTION_DISTRIBUTION_MODE=DISTRIBUTED.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format override: text, json")

	root.AddCommand(
		newQueryCmd(g),
		newGraphCmd(g),
		newWorkerCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (%s)\n", appName, Version, BuildTime)
			},
		},
	)
	return root
}
