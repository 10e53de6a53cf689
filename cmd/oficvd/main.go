package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/logx"
)

const (
	appName = "oficvd"
	version = "v0.1.0"
)

// Exit codes follow spec section 6: 0 success, 1 a run completed but hit a
// contract violation or equivalence divergence, 2 configuration failed to
// load or validate.
const (
	exitOK             = 0
	exitContractFailed = 1
	exitConfigInvalid  = 2
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "OFI/CVD microstructure signal and execution pipeline",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (defaults baked in when omitted)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "base directory of the partitioned ready/preview row files")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newEquivalenceCmd())

	if err := rootCmd.Execute(); err != nil {
		log := logx.Init("info")
		log.Error().Err(err).Msg("command failed")
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the spec's exit-code contract.
// Subcommands wrap config failures with wrapConfigError, and isConfigError
// maps those to exitConfigInvalid. Every other error, including contract
// and equivalence failures, maps to exitContractFailed.
func exitCodeFor(err error) int {
	switch {
	case isConfigError(err):
		return exitConfigInvalid
	default:
		return exitContractFailed
	}
}
