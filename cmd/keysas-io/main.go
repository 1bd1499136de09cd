// Command keysas-io is the USB ingress/egress daemon: it verifies each
// plugged device's hybrid signature and routes it through the mount &
// transfer engine, pushing live state over a WebSocket to the UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keysas-fr/keysas-io/pkg/log"
	"github.com/keysas-fr/keysas-io/pkg/transfer"
	"github.com/keysas-fr/keysas-io/pkg/usbctl"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

var (
	classicCACert string
	pqCACert      string
	yubikeyOn     bool
	sasIn         string
	sasOut        string
	configDir     string
	logLevel      string
)

const wsAddr = "127.0.0.1:3013"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keysas-io",
		Short:   "USB device verification and transfer daemon",
		Version: "0.1.0",
		RunE:    runDaemon,
	}

	cobra.OnInitialize(initLogging)

	cmd.PersistentFlags().StringVarP(&classicCACert, "classiccacert", "c", "/etc/keysas/usb-ca-cl.pem",
		"path to the classical USB-signing CA certificate")
	cmd.PersistentFlags().StringVarP(&pqCACert, "pqcacert", "p", "/etc/keysas/usb-ca-pq.pem",
		"path to the post-quantum USB-signing CA certificate")
	cmd.PersistentFlags().BoolVarP(&yubikeyOn, "yubikey", "y", false,
		"require Yubikey-gated user authentication before ingress copy")
	cmd.PersistentFlags().StringVar(&sasIn, "sas-in", "/var/local/in", "ingress staging directory")
	cmd.PersistentFlags().StringVar(&sasOut, "sas-out", "/var/local/out", "egress staging directory")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "/etc/keysas", "read-only configuration directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func initLogging() {
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: true})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ca, err := verify.LoadCACertificates(classicCACert, pqCACert)
	if err != nil {
		return fmt.Errorf("loading CA certificates: %w", err)
	}

	level, err := transfer.Confine(configDir, sasIn, sasOut, transfer.SentinelDir)
	if err != nil {
		return fmt.Errorf("confining filesystem sandbox: %w", err)
	}
	if level != transfer.FullyEnforced {
		log.Warn(fmt.Sprintf("filesystem sandbox is only %s", level))
	}

	server := &usbctl.Server{
		CA:        ca,
		SasIn:     sasIn,
		SasOut:    sasOut,
		YubikeyOn: yubikeyOn,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- usbctl.ListenAndServe(wsAddr, server)
	}()

	log.Info("keysas-io daemon started")
	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
