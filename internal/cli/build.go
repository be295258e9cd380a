package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/evidenceledger/eseal/internal/credentials"
	"github.com/evidenceledger/eseal/internal/issuer"
	"github.com/evidenceledger/eseal/internal/models"
	"github.com/evidenceledger/eseal/internal/sealer"
	"github.com/evidenceledger/eseal/internal/signing"
)

func newBuildCmd() *cobra.Command {
	var (
		credential string
		keyPath    string
		chainPath  string
		imagePath  string
		validFrom  string
		validTo    string
		out        string
		req        models.BuildSealRequest
	)

	cmd := &cobra.Command{
		Use:   "build (--credential FILE | --key FILE) --name NAME --image FILE --out FILE",
		Short: "Build and sign a seal",
		Long: `Build and sign a seal.

The signing credential is a PEM bundle or a PKCS#12 keystore (.p12, .pfx) given
with --credential, or a private key and certificate chain given with --key and
--chain. The key and chain may also be passed inline as PEM in
ESEAL_PRIVATE_KEY_PEM and ESEAL_CERTIFICATE_CHAIN_PEM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			req.Image = image

			if req.ValidFrom, err = parseTime(validFrom); err != nil {
				return fmt.Errorf("invalid --valid-from: %w", err)
			}
			if req.ValidTo, err = parseTime(validTo); err != nil {
				return fmt.Errorf("invalid --valid-to: %w", err)
			}

			registry := signing.Default()
			factory := &issuer.RequestFactory{
				Registry: registry,
				VendorID: flagOrEnv(cmd, "vendor", "ESEAL_VENDOR_ID"),
			}
			if credential != "" {
				factory.Store = credentials.FileStore{
					Dir:              filepath.Dir(credential),
					KeystorePassword: flagOrEnv(cmd, "keystore-password", "ESEAL_KEYSTORE_PASSWORD"),
				}
				factory.DefaultCredential = filepath.Base(credential)
			} else {
				store := credentialsFromFlags(keyPath, chainPath)
				if len(store) == 0 {
					return errors.New("a signing credential is required, use --credential or --key")
				}
				factory.Store = store
				factory.DefaultCredential = "flags"
			}
			buildReq, _, err := factory.New(&req)
			if err != nil {
				return err
			}

			seal, err := sealer.NewBuilder(registry, nil).Build(cmd.Context(), *buildReq)
			if err != nil {
				return err
			}
			data, err := seal.Encode()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write seal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote seal %s (%d bytes) to %s\n", seal.SealInfo.ESID, len(data), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&credential, "credential", "", "PEM bundle or PKCS#12 keystore with the signing key and certificate chain")
	f.String("keystore-password", "", "PKCS#12 keystore password (env ESEAL_KEYSTORE_PASSWORD)")
	f.StringVar(&keyPath, "key", "", "PEM private key, used when --credential is not given")
	f.StringVar(&chainPath, "chain", "", "PEM certificate chain, leaf first (read from --key when empty)")
	f.StringVar(&imagePath, "image", "", "stamp image file")
	f.StringVar(&out, "out", "", "output seal file")
	f.StringVar(&req.Name, "name", "", "seal name")
	f.StringVar(&req.Type, "type", "organization", "seal type: organization or individual")
	f.StringVar(&req.SealID, "id", "", "seal identifier (random when empty)")
	f.String("vendor", "eseal", "vendor identifier in the header (env ESEAL_VENDOR_ID)")
	f.StringVar(&req.ImageFormat, "format", "", "image format token (detected when empty)")
	f.Int64Var(&req.Width, "width", 0, "display width (taken from the image when zero)")
	f.Int64Var(&req.Height, "height", 0, "display height (taken from the image when zero)")
	f.StringVar(&validFrom, "valid-from", "", "start of validity, RFC 3339 (now when empty)")
	f.StringVar(&validTo, "valid-to", "", "end of validity, RFC 3339 (certificate expiry when empty)")
	f.StringVar(&req.Algorithm, "algorithm", "", "signature algorithm: sm2 or ecdsa-p256 (chosen from the key when empty)")
	cmd.MarkFlagsMutuallyExclusive("credential", "key")
	for _, name := range []string{"image", "out", "name"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// credentialsFromFlags collects the key and chain flags and the inline PEM
// environment variables into a credentials map. Flags take priority.
func credentialsFromFlags(keyPath, chainPath string) credentials.MapStore {
	m := credentials.MapStore{}
	if keyPath != "" {
		m[credentials.CredentialKeyPrivateKeyPEMFile] = keyPath
	} else if v := os.Getenv("ESEAL_PRIVATE_KEY_PEM"); v != "" {
		m[credentials.CredentialKeyPrivateKeyPEM] = v
	}
	if chainPath != "" {
		m[credentials.CredentialKeyCertificateChainPEMFile] = chainPath
	} else if v := os.Getenv("ESEAL_CERTIFICATE_CHAIN_PEM"); v != "" {
		m[credentials.CredentialKeyCertificateChainPEM] = v
	}
	return m
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
