package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/evidenceledger/eseal/internal/models"
)

// KeyID identifies the report signing key in the JWKS
const KeyID = "eseal-report-key"

// DefaultReportTTL is how long a verification report stays valid
const DefaultReportTTL = 24 * time.Hour

// ReportClaims is the payload of a signed verification report
type ReportClaims struct {
	Status            string `json:"status"`
	Valid             bool   `json:"valid"`
	SealName          string `json:"seal_name,omitempty"`
	SealType          string `json:"seal_type,omitempty"`
	Algorithm         string `json:"signature_algorithm,omitempty"`
	SignerSubject     string `json:"signer_subject,omitempty"`
	SignerFingerprint string `json:"signer_fingerprint,omitempty"`
	ValidStart        int64  `json:"valid_start,omitempty"`
	ValidEnd          int64  `json:"valid_end,omitempty"`
	SealDigest        string `json:"seal_sha256,omitempty"`
	jwt.RegisteredClaims
}

// Service signs verification reports
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	ttl        time.Duration
}

// NewService creates a new JWT service with a fresh RSA key
func NewService(issuer string) (*Service, error) {
	// Generate RSA key pair for report signing
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	slog.Info("JWT service initialized", "issuer", issuer)
	return &Service{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		ttl:        DefaultReportTTL,
	}, nil
}

// IssueVerificationReport signs the outcome of a verification. sealDigest is
// the hex SHA-256 of the verified bytes.
func (s *Service) IssueVerificationReport(resp *models.VerificationResponse, sealDigest string) (string, error) {
	now := resp.VerifiedAt
	if now.IsZero() {
		now = time.Now()
	}

	claims := ReportClaims{
		Status:     resp.Status.String(),
		Valid:      resp.Valid,
		SealName:   resp.Name,
		SealType:   resp.SealType,
		Algorithm:  resp.Algorithm,
		SealDigest: sealDigest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   resp.SealID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if resp.Signer != nil {
		claims.SignerSubject = resp.Signer.Subject
		claims.SignerFingerprint = resp.Signer.Fingerprint
	}
	if resp.ValidStart != nil {
		claims.ValidStart = resp.ValidStart.Unix()
	}
	if resp.ValidEnd != nil {
		claims.ValidEnd = resp.ValidEnd.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID

	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification report: %w", err)
	}

	slog.Debug("Verification report issued",
		"subject", claims.Subject,
		"status", claims.Status,
		"expiration", claims.ExpiresAt,
	)

	return tokenString, nil
}

// ParseVerificationReport checks the signature and expiry of a report
func (s *Service) ParseVerificationReport(tokenString string) (*ReportClaims, error) {
	claims := &ReportClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification report: %w", err)
	}
	return claims, nil
}

// GetPublicKey returns the public key in PEM format
func (s *Service) GetPublicKey() (string, error) {
	pubKeyBytes, err := x509.MarshalPKIXPublicKey(s.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubKeyBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// GetJWKS returns the JSON Web Key Set
func (s *Service) GetJWKS() map[string]any {

	jk, err := jwk.Import(s.publicKey)
	if err != nil {
		return nil
	}

	jk.Set("use", "sig")
	jk.Set(jwk.KeyIDKey, KeyID)
	jk.Set(jwk.AlgorithmKey, "RS256")

	jwks := map[string]any{
		"keys": []any{jk},
	}
	return jwks
}
