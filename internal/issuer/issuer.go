// Package issuer turns seal requests into signed-seal builder requests.
package issuer

import (
	"fmt"
	"time"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/credentials"
	"github.com/evidenceledger/eseal/internal/models"
	"github.com/evidenceledger/eseal/internal/sealer"
	"github.com/evidenceledger/eseal/internal/ses"
	"github.com/evidenceledger/eseal/internal/signing"
)

// RequestFactory turns seal requests into builder requests, loading the
// signing credential from Store and filling in defaults.
type RequestFactory struct {
	Store             credentials.Store
	Registry          *signing.Registry
	DefaultCredential string
	VendorID          string
	Now               func() time.Time
}

// New returns the builder request for req and the signer certificate.
func (f *RequestFactory) New(req *models.BuildSealRequest) (*sealer.Request, *certs.Certificate, error) {
	ref := req.Credential
	if ref == "" {
		ref = f.DefaultCredential
	}
	if ref == "" {
		return nil, nil, &ses.ValidationError{Field: "credential", Reason: "no credential given and no default configured"}
	}

	key, err := f.Store.LoadPrivateKey(ref)
	if err != nil {
		return nil, nil, &ses.ValidationError{Field: "credential", Reason: err.Error()}
	}
	chain, err := f.Store.LoadCertificateChain(ref)
	if err != nil {
		return nil, nil, &ses.ValidationError{Field: "credential", Reason: err.Error()}
	}
	signer := chain[0]

	sealType := ses.Organization
	if req.Type != "" {
		if sealType, err = ses.ParseSealType(req.Type); err != nil {
			return nil, nil, err
		}
	}

	vendor := req.VendorID
	if vendor == "" {
		vendor = f.VendorID
	}
	header, err := ses.NewHeader(ses.VersionV1, vendor)
	if err != nil {
		return nil, nil, err
	}

	var picture *ses.PictureInfo
	if req.ImageFormat == "" {
		picture, err = ses.PictureInfoFromImage(req.Image, req.Width, req.Height)
	} else {
		picture, err = ses.NewPictureInfo(req.ImageFormat, req.Image, req.Width, req.Height)
	}
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	validFrom, validTo := req.ValidFrom, req.ValidTo
	if validFrom.IsZero() {
		validFrom = now
	}
	if validTo.IsZero() {
		validTo = signer.NotAfter
	}

	certList := make([][]byte, 0, len(chain))
	for _, c := range chain {
		certList = append(certList, c.Raw)
	}
	property, err := ses.NewPropertyInfo(sealType, req.Name, certList, now, validFrom, validTo)
	if err != nil {
		return nil, nil, err
	}

	sealID := req.SealID
	if sealID == "" {
		sealID = sealer.NewSealID()
	}

	out := &sealer.Request{
		Header:             header,
		SealID:             sealID,
		Property:           property,
		Picture:            picture,
		SigningCertificate: signer.Raw,
		SigningKey:         key,
	}
	if req.Algorithm != "" {
		registry := f.Registry
		if registry == nil {
			registry = signing.Default()
		}
		svc, err := registry.ByName(req.Algorithm)
		if err != nil {
			return nil, nil, &ses.ValidationError{Field: "algorithm", Reason: fmt.Sprint(err)}
		}
		out.Algorithm = svc.Algorithm()
	}
	return out, signer, nil
}
