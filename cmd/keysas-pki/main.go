// Command keysas-pki is the offline provisioning tool: it generates hybrid
// root/leaf keypairs and writes signed device-signature blobs onto raw USB
// block devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keysas-fr/keysas-io/pkg/log"
)

var (
	logLevel string
	logJSON  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keysas-pki",
		Short:   "Hybrid classical/post-quantum certificate and device-signing authority",
		Version: "0.1.0",
	}

	cobra.OnInitialize(initLogging)

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	cmd.AddCommand(generateRootCmd)
	cmd.AddCommand(generateLeafCmd)
	cmd.AddCommand(signDeviceCmd)
	cmd.AddCommand(applyCmd)

	return cmd
}

func initLogging() {
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}
