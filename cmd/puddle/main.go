package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "puddle.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puddle",
		Short: "Puddle: a small marketplace with buyer and seller conversations",
		Long:  "Puddle lists items for sale and lets visitors message sellers about them.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newItemCmd())
	cmd.AddCommand(newConversationCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "puddle %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Puddle config file")
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
