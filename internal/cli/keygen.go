package cli

import (
	"crypto/x509/pkix"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/credentials"
)

func newKeygenCmd() *cobra.Command {
	var (
		keyType  string
		cn       string
		org      string
		orgID    string
		validFor time.Duration
		out      string
	)

	cmd := &cobra.Command{
		Use:   "keygen --out FILE",
		Short: "Generate a signing key and self-signed certificate as a PEM bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := pkix.Name{CommonName: cn}
			if org != "" {
				subject.Organization = []string{org}
			}
			if orgID != "" {
				subject.ExtraNames = append(subject.ExtraNames, pkix.AttributeTypeAndValue{
					Type:  certs.OIDOrganizationIdentifier,
					Value: orgID,
				})
			}

			key, cert, err := credentials.GenerateSelfSigned(credentials.KeyType(keyType), subject, validFor)
			if err != nil {
				return err
			}
			bundle, err := credentials.EncodeBundle(key, cert)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, bundle, 0o600); err != nil {
				return fmt.Errorf("failed to write credential: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s credential for %q to %s\n", keyType, cn, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyType, "type", string(credentials.KeyTypeSM2), "key type: sm2 or ecdsa-p256")
	cmd.Flags().StringVar(&cn, "cn", "eSeal signer", "certificate common name")
	cmd.Flags().StringVar(&org, "org", "", "certificate organization")
	cmd.Flags().StringVar(&orgID, "org-id", "", "certificate organizationIdentifier, e.g. VATES-B12345678")
	cmd.Flags().DurationVar(&validFor, "valid-for", 2*365*24*time.Hour, "certificate lifetime")
	cmd.Flags().StringVar(&out, "out", "", "output PEM bundle")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
