package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "Rebound Radar - 크립토 리바운드 랭킹 시스템",
	Long: `Rebound Radar Unified CLI

멀티 프로바이더 수집, 품질 스코어링, 리바운드 잠재력 랭킹 백엔드.

Usage:
  go run ./cmd/radar [command]

Examples:
  go run ./cmd/radar api
  go run ./cmd/radar refresh --force
  go run ./cmd/radar precompute
  go run ./cmd/radar status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
