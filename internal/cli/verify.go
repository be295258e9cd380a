package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evidenceledger/eseal/internal/models"
	"github.com/evidenceledger/eseal/internal/sealer"
)

// ErrSealNotValid is returned by verify when the seal does not check out.
var ErrSealNotValid = errors.New("seal is not valid")

func newVerifyCmd() *cobra.Command {
	var (
		at     string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Verify a seal's signature and validity window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read seal: %w", err)
			}

			when := time.Now()
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			res := sealer.NewVerifier(nil, nil).VerifyAt(cmd.Context(), data, when)
			resp := models.NewVerificationResponse(res, when)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			} else {
				printVerification(cmd.OutOrStdout(), resp)
			}

			if !res.Valid() {
				return fmt.Errorf("%w: %s", ErrSealNotValid, res.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "verification time, RFC 3339 (now when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printVerification(w io.Writer, r *models.VerificationResponse) {
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	if r.SealID != "" {
		fmt.Fprintf(w, "Seal:       %s (%s, %s)\n", r.SealID, r.Name, r.SealType)
	}
	if r.ValidStart != nil && r.ValidEnd != nil {
		fmt.Fprintf(w, "Validity:   %s to %s\n", r.ValidStart.Format(time.RFC3339), r.ValidEnd.Format(time.RFC3339))
	}
	if r.Algorithm != "" {
		fmt.Fprintf(w, "Algorithm:  %s\n", r.Algorithm)
	}
	if r.Signer != nil {
		fmt.Fprintf(w, "Signer:     %s\n", r.Signer.Subject)
		fmt.Fprintf(w, "SHA-256:    %s\n", r.Signer.Fingerprint)
		if !r.SignerValid {
			fmt.Fprintf(w, "Warning:    signer certificate not valid at %s\n", r.VerifiedAt.Format(time.RFC3339))
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
}
