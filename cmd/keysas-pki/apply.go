package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keysas-fr/keysas-io/pkg/verify"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a batch provisioning manifest",
	Long: `Apply a YAML manifest describing a batch of devices to sign in one
run, useful when provisioning a stack of USB drives from a single signing
keypair.

Example:
  keysas-pki apply -f batch.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.MarkFlagRequired("file")
}

// Manifest is the generic envelope for a keysas-pki batch resource,
// mirroring the apiVersion/kind/metadata/spec shape used elsewhere in the
// ecosystem for declarative batch operations.
type Manifest struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Metadata   ManifestMeta    `yaml:"metadata"`
	Spec       DeviceBatchSpec `yaml:"spec"`
}

type ManifestMeta struct {
	Name string `yaml:"name"`
}

// DeviceBatchSpec describes one signing keypair and the devices to sign
// with it in a single pass.
type DeviceBatchSpec struct {
	Signer    string       `yaml:"signer"`
	SignerDir string       `yaml:"signerDir"`
	Password  string       `yaml:"password"`
	Devices   []DeviceSpec `yaml:"devices"`
}

type DeviceSpec struct {
	Path     string `yaml:"path"`
	VendorID string `yaml:"vendorId"`
	ModelID  string `yaml:"modelId"`
	Revision string `yaml:"revision"`
	Serial   string `yaml:"serial"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	switch manifest.Kind {
	case "DeviceBatch":
		return applyDeviceBatch(&manifest)
	default:
		return fmt.Errorf("unsupported manifest kind: %s", manifest.Kind)
	}
}

func applyDeviceBatch(manifest *Manifest) error {
	spec := manifest.Spec
	if spec.Signer == "" {
		return fmt.Errorf("spec.signer is required")
	}
	if len(spec.Devices) == 0 {
		return fmt.Errorf("spec.devices must contain at least one entry")
	}

	signerDir := spec.SignerDir
	if signerDir == "" {
		signerDir = "."
	}

	fmt.Printf("Applying device batch %q: %d device(s)\n", manifest.Metadata.Name, len(spec.Devices))

	var failures int
	for _, dev := range spec.Devices {
		identity := verify.DeviceIdentity{
			VendorID: dev.VendorID, ModelID: dev.ModelID, Revision: dev.Revision, Serial: dev.Serial,
		}
		if err := signDevice(dev.Path, spec.Signer, signerDir, spec.Password, identity); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", dev.Path, err)
			failures++
			continue
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d device(s) failed to sign", failures, len(spec.Devices))
	}
	fmt.Println("✓ Batch complete")
	return nil
}
