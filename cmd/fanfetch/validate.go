package main

import (
	"fmt"

	"github.com/jpalmerr/fanfetch/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a fanfetch configuration file without dispatching anything.

This command parses the YAML, expands environment variables, validates all
fields and expands every grid. Useful for CI pipelines.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  fanfetch validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// grids only fail on template execution once expanded
	descriptors, err := config.BuildDescriptors(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Descriptors)
	fromGrids := len(descriptors) - direct

	capacity := "unbounded"
	if cfg.Capacity > 0 {
		capacity = fmt.Sprintf("%d", cfg.Capacity)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:        %d\n", cfg.Port)
	fmt.Printf("  Capacity:    %s\n", capacity)
	fmt.Printf("  Timeout:     %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Descriptors: %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(descriptors))

	return nil
}
