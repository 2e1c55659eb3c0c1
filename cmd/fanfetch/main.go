// Package main is the entry point for the fanfetch CLI.
//
// fanfetch can be used as a library (SDK) or as a standalone binary driven
// by a YAML configuration file. This CLI provides the standalone binary.
//
// Usage:
//
//	fanfetch fetch -c config.yaml    # Dispatch once and print the report
//	fanfetch serve -c config.yaml    # Serve outcomes over HTTP
//	fanfetch validate -c config.yaml # Validate configuration
//	fanfetch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "fanfetch",
	Short: "Fetch many URLs concurrently and report every outcome",
	Long: `fanfetch dispatches a batch of independent HTTP requests in parallel
and collects exactly one outcome per request, in submission order.

Quick start:
  1. Create a config file (fanfetch.yaml)
  2. Run: fanfetch fetch -c fanfetch.yaml

Example config:
  capacity: 8
  timeout: 5s
  descriptors:
    - name: GitHub API
      url: https://api.github.com
  grids:
    - name: Pages
      url_template: "https://example.com/items?page={{.page}}"
      ranges:
        page: {from: 1, to: 20}`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this fanfetch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fanfetch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
