package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/pkg/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "tokengate",
	Short: "TokenGate - Bearer Token Verification Service",
	Long:  `TokenGate verifies bearer tokens for protected resource servers using JWT, OAuth 2.0 introspection, or a static development table.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.DefaultConfig()
		if logLevel != "" {
			cfg.Level = logLevel
		}
		if logFormat != "" {
			cfg.Format = logging.LogFormat(logFormat)
		}
		logging.Configure(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
