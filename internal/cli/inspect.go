package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/ses"
	"github.com/evidenceledger/eseal/internal/signing"
)

func newInspectCmd() *cobra.Command {
	var imageOut string

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the contents of a seal without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read seal: %w", err)
			}
			seal, err := ses.Decode(data)
			if err != nil {
				return err
			}

			printSeal(cmd.OutOrStdout(), seal)

			if imageOut != "" {
				if err := os.WriteFile(imageOut, seal.SealInfo.Picture.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write image: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imageOut, "image-out", "", "write the stamp image to this file")
	return cmd
}

func printSeal(w io.Writer, seal *ses.Seal) {
	info := seal.SealInfo
	fmt.Fprintf(w, "Header:       %s version %d, vendor %q\n", info.Header.ID, info.Header.Version, info.Header.VendorID)
	fmt.Fprintf(w, "Seal id:      %s\n", info.ESID)

	p := info.Property
	fmt.Fprintf(w, "Name:         %s\n", p.Name)
	fmt.Fprintf(w, "Type:         %s\n", p.Type)
	fmt.Fprintf(w, "Created:      %s\n", p.CreateDate.Format(time.RFC3339))
	fmt.Fprintf(w, "Valid:        %s to %s\n", p.ValidStart.Format(time.RFC3339), p.ValidEnd.Format(time.RFC3339))
	for i, raw := range p.CertList {
		if c, err := certs.Parse(raw); err == nil {
			fmt.Fprintf(w, "Certificate %d: %s\n", i, c.Subject)
		}
	}
	fmt.Fprintf(w, "Picture:      %s\n", info.Picture)
	for _, e := range info.Extensions {
		fmt.Fprintf(w, "Extension:    %s (%d bytes, critical %t)\n", e.ID, len(e.Value), e.Critical)
	}

	alg := seal.SignInfo.SignatureAlgorithm.String()
	if svc, err := signing.Default().Lookup(seal.SignInfo.SignatureAlgorithm); err == nil {
		alg = svc.Name() + " (" + alg + ")"
	}
	fmt.Fprintf(w, "Algorithm:    %s\n", alg)
	if c, err := certs.Parse(seal.SignInfo.Cert); err == nil {
		fmt.Fprintf(w, "Signer:       %s\n", c.Subject)
	}
	fmt.Fprintf(w, "Signature:    %d bytes\n", len(seal.SignInfo.SignData))
}
