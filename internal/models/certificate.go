package models

import (
	"time"

	"github.com/evidenceledger/eseal/internal/certs"
)

// CertificateData represents certificate information exchanged with API clients
type CertificateData struct {
	Subject                string    `json:"subject"`
	Issuer                 string    `json:"issuer"`
	Organization           string    `json:"organization,omitempty"`
	OrganizationIdentifier string    `json:"organization_identifier,omitempty"`
	SerialNumber           string    `json:"serial_number"`
	ValidFrom              time.Time `json:"valid_from"`
	ValidTo                time.Time `json:"valid_to"`
	CertificateType        string    `json:"certificate_type"` // "organizational" or "personal"
	Fingerprint            string    `json:"fingerprint"`
}

// NewCertificateData summarizes a parsed certificate
func NewCertificateData(c *certs.Certificate) *CertificateData {
	if c == nil {
		return nil
	}
	d := &CertificateData{
		Subject:                c.Subject.String(),
		Issuer:                 c.Issuer.String(),
		OrganizationIdentifier: c.OrganizationIdentifier(),
		ValidFrom:              c.NotBefore,
		ValidTo:                c.NotAfter,
		CertificateType:        string(c.Kind()),
		Fingerprint:            c.Fingerprint(),
	}
	if len(c.Subject.Organization) > 0 {
		d.Organization = c.Subject.Organization[0]
	}
	if c.SerialNumber != nil {
		d.SerialNumber = c.SerialNumber.Text(16)
	}
	return d
}
