package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/config"
)

// loadConfig resolves the --config flag through config.Load, which applies
// defaults, the six env overrides, and validation in that order (spec
// section 6). Any failure here is a configuration failure, not a runtime
// one, and maps to exit code 2.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, wrapConfigError(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, wrapConfigError(fmt.Errorf("load config: %w", err))
	}
	return cfg, nil
}
