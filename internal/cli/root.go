package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	applogger "FactorPipe/pkg/logger"
)

type ExitCode int

const (
	exitCodeSuccess ExitCode = 0
	exitCodeError   ExitCode = 1
)

// Run executes the CLI with os.Args and returns the process exit code.
func Run() ExitCode {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

// NewRootCmd builds the command tree writing results to out and logs to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "factorpipe",
		Short:         "Build and run factor pipelines over daily equity bars.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config selecting the pricing backend")
	rootCmd.PersistentFlags().String("csv", "", "load bars from a CSV file into an in-memory store")

	rootCmd.AddCommand(
		NewRunCmd().Command(),
		NewSessionsCmd().Command(),
		NewIngestCmd().Command(),
	)
	return rootCmd
}

func newLogger(cmd *cobra.Command) *applogger.Logger {
	level := zerolog.InfoLevel
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	return applogger.NewWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}, level)
}
