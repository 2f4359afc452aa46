// Command odysseyctl is the operator CLI for Odyssey Mill.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-mill/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "odysseyctl",
	Short:         "Operator tooling for Odyssey Mill",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "odysseyctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the same environment as the server.
func loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
