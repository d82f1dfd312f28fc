// Command marketd serves simulated market data, analytics and a live bar
// stream.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "marketd",
	Short: "Market data service backed by a generated price series",
	Long: `marketd keeps a per-symbol series of 5-minute OHLCV bars, extends it on a
schedule, and serves bars, indicators, sentiment, trading metrics and alerts
over REST with a websocket stream of new bars.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables override it)")
	rootCmd.AddCommand(serveCmd, seedCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
