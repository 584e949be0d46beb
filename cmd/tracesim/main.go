package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracesim/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tracesim",
		Short: "Diagnostic path simulator",
		Long: `Tracesim synthesizes plausible network paths and keeps a bounded history
of the traces it produced.

  tracesim serve                                   # run the HTTP API
  tracesim trace route --source-ip 10.1.1.5 ...    # synthesize locally
  tracesim trace mac --ip 10.1.1.5 --dg 10.1.1.1
  tracesim remote route --url http://localhost:8000 ...`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newTraceCmd(),
		newRemoteCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.Engine())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
