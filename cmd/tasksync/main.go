package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/tasksync/internal/model"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tasksync",
		Short:         "Keep local tasks in sync with Jira, GitHub and Azure DevOps issues",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")

	cfgPath := func() string { return configPath }
	root.AddCommand(
		serveCmd(cfgPath),
		importCmd(cfgPath),
		exportCmd(cfgPath),
		pushCmd(cfgPath),
		tokenCmd(cfgPath),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tasksync", Version)
		},
	}
}
