package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keysas-fr/keysas-io/pkg/devsig"
	"github.com/keysas-fr/keysas-io/pkg/pki"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

var signDeviceCmd = &cobra.Command{
	Use:   "sign-device DEVICE",
	Short: "Write a hybrid device signature blob onto a raw USB block device",
	Long: `Sign the canonical vendor/model/revision/serial/out message with the
named signing keypair and write the resulting hybrid signature blob at the
fixed offset reserved on the raw device.

Examples:
  keysas-pki sign-device /dev/sdb --signer usb-signing --signer-dir /etc/keysas \
    --password "$SIGNER_PASSWORD" --vendor-id abcd --model-id 1234 --revision 0100 --serial S0123456789`,
	Args: cobra.ExactArgs(1),
	RunE: runSignDevice,
}

func init() {
	signDeviceCmd.Flags().String("signer", "", "Name of the signing keypair (required)")
	signDeviceCmd.Flags().String("signer-dir", ".", "Directory holding the signing keypair")
	signDeviceCmd.Flags().String("password", "", "Password protecting the signing private key envelopes (required)")
	signDeviceCmd.Flags().String("vendor-id", "", "USB vendor ID (required)")
	signDeviceCmd.Flags().String("model-id", "", "USB model/product ID (required)")
	signDeviceCmd.Flags().String("revision", "", "USB device revision (required)")
	signDeviceCmd.Flags().String("serial", "", "USB device serial number (required)")
	signDeviceCmd.MarkFlagRequired("signer")
	signDeviceCmd.MarkFlagRequired("password")
	signDeviceCmd.MarkFlagRequired("vendor-id")
	signDeviceCmd.MarkFlagRequired("model-id")
	signDeviceCmd.MarkFlagRequired("revision")
	signDeviceCmd.MarkFlagRequired("serial")
}

func runSignDevice(cmd *cobra.Command, args []string) error {
	devicePath := args[0]
	signerName, _ := cmd.Flags().GetString("signer")
	signerDir, _ := cmd.Flags().GetString("signer-dir")
	password, _ := cmd.Flags().GetString("password")
	vendorID, _ := cmd.Flags().GetString("vendor-id")
	modelID, _ := cmd.Flags().GetString("model-id")
	revision, _ := cmd.Flags().GetString("revision")
	serial, _ := cmd.Flags().GetString("serial")

	return signDevice(devicePath, signerName, signerDir, password, verify.DeviceIdentity{
		VendorID: vendorID, ModelID: modelID, Revision: revision, Serial: serial,
	})
}

func signDevice(devicePath, signerName, signerDir, password string, identity verify.DeviceIdentity) error {
	signer, err := pki.LoadHybridKeyPair(signerDir, signerName, password)
	if err != nil {
		return fmt.Errorf("loading signing keypair %q: %w", signerName, err)
	}

	sig, err := signer.Sign(identity.CanonicalMessage("out"))
	if err != nil {
		return fmt.Errorf("signing device identity: %w", err)
	}

	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening device %s: %w", devicePath, err)
	}
	defer f.Close()

	if err := devsig.WriteTo(f, sig.Classical, sig.PostQuantum); err != nil {
		return fmt.Errorf("writing signature blob: %w", err)
	}

	fmt.Printf("Device signed: %s (%s/%s/%s/%s)\n", devicePath, identity.VendorID, identity.ModelID, identity.Revision, identity.Serial)
	return nil
}
