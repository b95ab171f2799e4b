package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command for the sectorpulse CLI.
var rootCmd = &cobra.Command{
	Use:   "sectorpulse",
	Short: "Crypto sector heatmap service",
	Long: `sectorpulse polls cryptocurrency sector data from upstream providers
(CoinGecko with DeFi Llama fallback), derives a row-packed treemap layout,
and serves both the raw categories and the tile geometry over a JSON API
with websocket push.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sectorpulse - crypto sector heatmap service")
		fmt.Println("Use 'sectorpulse serve' to run the service, or 'sectorpulse snapshot' for a one-shot fetch")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(layoutCmd)
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := logLevel
	if level == "" {
		level = "info"
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
