package main

import (
	"crypto/x509/pkix"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keysas-fr/keysas-io/pkg/pki"
)

var generateRootCmd = &cobra.Command{
	Use:   "generate-root NAME",
	Short: "Generate a new self-signed hybrid root keypair",
	Long: `Generate a new hybrid root keypair: a classical (Ed25519) and a
post-quantum (Dilithium5) keypair, each self-signed into its own certificate
with an empty issuer/subject and serial 1.

Examples:
  keysas-pki generate-root usb-ca --org "Keysas" --unit "USB Authority" --country FR --out /etc/keysas \
    --password "$CA_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateRoot,
}

var generateLeafCmd = &cobra.Command{
	Use:   "generate-leaf NAME",
	Short: "Generate a new hybrid leaf keypair signed by a root",
	Long: `Generate a new hybrid leaf keypair, issue a certificate for each
half from the named CA, and save the result.

Examples:
  keysas-pki generate-leaf usb-signing --ca usb-ca --ca-dir /etc/keysas --ca-password "$CA_PASSWORD" \
    --cn "usb-signing-01" --org "Keysas" --unit "USB Authority" --country FR --out /etc/keysas \
    --password "$SIGNER_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateLeaf,
}

func init() {
	generateRootCmd.Flags().String("org", "", "Organization name (required)")
	generateRootCmd.Flags().String("unit", "", "Organizational unit (required)")
	generateRootCmd.Flags().String("country", "", "Two-letter country code (required)")
	generateRootCmd.Flags().Int("validity-days", 3650, "Certificate validity in days")
	generateRootCmd.Flags().String("out", ".", "Output directory for keys and certificates")
	generateRootCmd.Flags().String("password", "", "Password protecting the private key envelopes (required)")
	generateRootCmd.MarkFlagRequired("org")
	generateRootCmd.MarkFlagRequired("unit")
	generateRootCmd.MarkFlagRequired("country")
	generateRootCmd.MarkFlagRequired("password")

	generateLeafCmd.Flags().String("ca", "", "Name of the CA keypair to sign with (required)")
	generateLeafCmd.Flags().String("ca-dir", ".", "Directory holding the CA keypair")
	generateLeafCmd.Flags().String("ca-password", "", "Password protecting the CA private key envelopes (required)")
	generateLeafCmd.Flags().String("cn", "", "Common name for the new leaf's subject (required)")
	generateLeafCmd.Flags().String("org", "", "Organization name (required)")
	generateLeafCmd.Flags().String("unit", "", "Organizational unit (required)")
	generateLeafCmd.Flags().String("country", "", "Two-letter country code (required)")
	generateLeafCmd.Flags().Int("validity-days", 365, "Certificate validity in days")
	generateLeafCmd.Flags().String("out", ".", "Output directory for keys and certificates")
	generateLeafCmd.Flags().String("password", "", "Password protecting the new private key envelopes (required)")
	generateLeafCmd.MarkFlagRequired("ca")
	generateLeafCmd.MarkFlagRequired("ca-password")
	generateLeafCmd.MarkFlagRequired("cn")
	generateLeafCmd.MarkFlagRequired("org")
	generateLeafCmd.MarkFlagRequired("unit")
	generateLeafCmd.MarkFlagRequired("country")
	generateLeafCmd.MarkFlagRequired("password")
}

func runGenerateRoot(cmd *cobra.Command, args []string) error {
	name := args[0]
	org, _ := cmd.Flags().GetString("org")
	unit, _ := cmd.Flags().GetString("unit")
	country, _ := cmd.Flags().GetString("country")
	validityDays, _ := cmd.Flags().GetInt("validity-days")
	out, _ := cmd.Flags().GetString("out")
	password, _ := cmd.Flags().GetString("password")

	root, err := pki.GenerateRoot(pki.CertificateFields{
		OrgName: org, OrgUnit: unit, Country: country, ValidityDays: validityDays,
	})
	if err != nil {
		return fmt.Errorf("generating root keypair: %w", err)
	}

	if err := root.Save(out, name, password); err != nil {
		return fmt.Errorf("saving root keypair: %w", err)
	}

	fmt.Printf("Root keypair generated: %s\n", name)
	fmt.Printf("  Classical key:  %s/%s-priv-cl.p8\n", out, name)
	fmt.Printf("  PQ key:         %s/%s-priv-pq.p8\n", out, name)
	fmt.Printf("  Classical cert: %s/%s-cert-cl.pem\n", out, name)
	fmt.Printf("  PQ cert:        %s/%s-cert-pq.pem\n", out, name)
	return nil
}

func runGenerateLeaf(cmd *cobra.Command, args []string) error {
	name := args[0]
	caName, _ := cmd.Flags().GetString("ca")
	caDir, _ := cmd.Flags().GetString("ca-dir")
	caPassword, _ := cmd.Flags().GetString("ca-password")
	cn, _ := cmd.Flags().GetString("cn")
	org, _ := cmd.Flags().GetString("org")
	unit, _ := cmd.Flags().GetString("unit")
	country, _ := cmd.Flags().GetString("country")
	validityDays, _ := cmd.Flags().GetInt("validity-days")
	out, _ := cmd.Flags().GetString("out")
	password, _ := cmd.Flags().GetString("password")

	ca, err := pki.LoadHybridKeyPair(caDir, caName, caPassword)
	if err != nil {
		return fmt.Errorf("loading CA keypair %q: %w", caName, err)
	}

	leaf, err := pki.GenerateLeaf(ca, pkix.Name{
		CommonName:         cn,
		Organization:       []string{org},
		OrganizationalUnit: []string{unit},
		Country:            []string{country},
	}, pki.CertificateFields{OrgName: org, OrgUnit: unit, Country: country, ValidityDays: validityDays})
	if err != nil {
		return fmt.Errorf("issuing leaf keypair: %w", err)
	}

	if err := leaf.Save(out, name, password); err != nil {
		return fmt.Errorf("saving leaf keypair: %w", err)
	}

	fmt.Printf("Leaf keypair generated: %s (signed by %s)\n", name, caName)
	fmt.Printf("  Classical cert: %s/%s-cert-cl.pem\n", out, name)
	fmt.Printf("  PQ cert:        %s/%s-cert-pq.pem\n", out, name)
	return nil
}
