package models

import (
	"time"

	"github.com/evidenceledger/eseal/internal/sealer"
	"github.com/evidenceledger/eseal/internal/ses"
)

// SealRecord represents an issued seal stored in the registry
type SealRecord struct {
	ID                int64     `json:"id"`
	SealID            string    `json:"seal_id"`
	Name              string    `json:"name"`
	SealType          string    `json:"seal_type"`
	ImageFormat       string    `json:"image_format"`
	Algorithm         string    `json:"algorithm"`
	SignerSubject     string    `json:"signer_subject"`
	SignerFingerprint string    `json:"signer_fingerprint"`
	ValidStart        time.Time `json:"valid_start"`
	ValidEnd          time.Time `json:"valid_end"`
	Data              []byte    `json:"-"` // encoded seal, served separately
	CreatedAt         time.Time `json:"created_at"`
}

// NewSealRecord describes an encoded seal for storage
func NewSealRecord(seal *ses.Seal, signer *CertificateData, data []byte) *SealRecord {
	info := seal.SealInfo
	rec := &SealRecord{
		SealID:      info.ESID,
		Name:        info.Property.Name,
		SealType:    info.Property.Type.String(),
		ImageFormat: info.Picture.Type,
		Algorithm:   seal.SignInfo.SignatureAlgorithm.String(),
		ValidStart:  info.Property.ValidStart,
		ValidEnd:    info.Property.ValidEnd,
		Data:        data,
	}
	if signer != nil {
		rec.SignerSubject = signer.Subject
		rec.SignerFingerprint = signer.Fingerprint
	}
	return rec
}

// BuildSealRequest represents a request to issue a seal with a server held credential
type BuildSealRequest struct {
	SealID      string    `json:"seal_id,omitempty"` // generated when empty
	Name        string    `json:"name"`
	Type        string    `json:"type"` // "organization" or "individual"
	VendorID    string    `json:"vendor_id,omitempty"`
	Image       []byte    `json:"image"` // base64 in JSON
	ImageFormat string    `json:"image_format,omitempty"`
	Width       int64     `json:"width,omitempty"`
	Height      int64     `json:"height,omitempty"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
	Credential  string    `json:"credential,omitempty"`
	Algorithm   string    `json:"algorithm,omitempty"`
}

// VerificationResponse represents the outcome of verifying a seal
type VerificationResponse struct {
	Status      sealer.Status    `json:"status"`
	Valid       bool             `json:"valid"`
	SealID      string           `json:"seal_id,omitempty"`
	Name        string           `json:"name,omitempty"`
	SealType    string           `json:"seal_type,omitempty"`
	Algorithm   string           `json:"algorithm,omitempty"`
	ValidStart  *time.Time       `json:"valid_start,omitempty"`
	ValidEnd    *time.Time       `json:"valid_end,omitempty"`
	Signer      *CertificateData `json:"signer,omitempty"`
	SignerValid bool             `json:"signer_certificate_valid"`
	Error       string           `json:"error,omitempty"`
	Report      string           `json:"report,omitempty"` // signed JWT
	VerifiedAt  time.Time        `json:"verified_at"`
	ImageFormat string           `json:"image_format,omitempty"`
}

// NewVerificationResponse flattens a verification result
func NewVerificationResponse(res sealer.Result, at time.Time) *VerificationResponse {
	r := &VerificationResponse{
		Status:      res.Status,
		Valid:       res.Valid(),
		Signer:      NewCertificateData(res.Signer),
		SignerValid: res.SignerValid,
		VerifiedAt:  at,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	if res.Seal != nil && res.Seal.SealInfo != nil {
		info := res.Seal.SealInfo
		r.SealID = info.ESID
		if info.Property != nil {
			r.Name = info.Property.Name
			r.SealType = info.Property.Type.String()
			start, end := info.Property.ValidStart, info.Property.ValidEnd
			r.ValidStart, r.ValidEnd = &start, &end
		}
		if info.Picture != nil {
			r.ImageFormat = info.Picture.Type
		}
	}
	if res.Seal != nil && res.Seal.SignInfo != nil {
		r.Algorithm = res.Seal.SignInfo.SignatureAlgorithm.String()
	}
	return r
}

// VerificationRecord represents one logged verification
type VerificationRecord struct {
	ID         int64     `json:"id"`
	SealID     string    `json:"seal_id"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}
