package sealer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"image"
	"image/color"
	"image/png"
	mrand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjfoc/gmsm/sm2"

	"github.com/evidenceledger/eseal/internal/credentials"
	"github.com/evidenceledger/eseal/internal/der"
	"github.com/evidenceledger/eseal/internal/ses"
	"github.com/evidenceledger/eseal/internal/signing"
)

var keyTypes = []credentials.KeyType{credentials.KeyTypeSM2, credentials.KeyTypeECDSAP256}

type fixture struct {
	key   crypto.PrivateKey
	cert  []byte
	image []byte
	now   time.Time
}

func newFixture(t *testing.T, kt credentials.KeyType) *fixture {
	t.Helper()
	key, cert, err := credentials.GenerateSelfSigned(kt,
		pkix.Name{CommonName: "Seal Signer", Organization: []string{"Test Org"}}, 3*365*24*time.Hour)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := 0; i < 40; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
		img.Set(39-i, i, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return &fixture{
		key:   key,
		cert:  cert,
		image: buf.Bytes(),
		now:   time.Now().UTC().Truncate(time.Second),
	}
}

func (f *fixture) request(t *testing.T) Request {
	t.Helper()
	header, err := ses.NewHeader(ses.VersionV1, "eseal")
	require.NoError(t, err)
	property, err := ses.NewPropertyInfo(ses.Organization, "Test Org", [][]byte{f.cert},
		f.now, f.now, f.now.AddDate(2, 0, 0))
	require.NoError(t, err)
	picture, err := ses.PictureInfoFromImage(f.image, 0, 0)
	require.NoError(t, err)

	return Request{
		Header:             header,
		SealID:             "E1",
		Property:           property,
		Picture:            picture,
		SigningCertificate: f.cert,
		SigningKey:         f.key,
	}
}

func (f *fixture) build(t *testing.T) []byte {
	t.Helper()
	seal, err := NewBuilder(nil, nil).Build(t.Context(), f.request(t))
	require.NoError(t, err)
	encoded, err := seal.Encode()
	require.NoError(t, err)
	return encoded
}

func TestEndToEnd(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(string(kt), func(t *testing.T) {
			f := newFixture(t, kt)
			encoded := f.build(t)
			v := NewVerifier(nil, nil)

			res := v.Verify(t.Context(), encoded)
			require.Equal(t, Valid, res.Status, "%v", res.Err)
			assert.True(t, res.Valid())
			assert.Equal(t, "E1", res.Seal.SealInfo.ESID)
			assert.Equal(t, "Test Org", res.Seal.SealInfo.Property.Name)
			assert.EqualValues(t, 40, res.Seal.SealInfo.Picture.Width)
			assert.EqualValues(t, 40, res.Seal.SealInfo.Picture.Height)
			assert.Equal(t, "Seal Signer", res.Signer.Subject.CommonName)

			at := bytes.Index(encoded, f.image)
			require.Positive(t, at)
			tampered := bytes.Clone(encoded)
			tampered[at+len(f.image)/2] ^= 0x01

			res = v.Verify(t.Context(), tampered)
			assert.Equal(t, SignatureMismatch, res.Status)
			assert.Error(t, res.Err)
		})
	}
}

func TestSignatureAlgorithmRecorded(t *testing.T) {
	want := map[credentials.KeyType]asn1.ObjectIdentifier{
		credentials.KeyTypeSM2:       signing.OIDSM2WithSM3,
		credentials.KeyTypeECDSAP256: signing.OIDECDSAWithSHA256,
	}
	for _, kt := range keyTypes {
		f := newFixture(t, kt)
		seal, err := ses.Decode(f.build(t))
		require.NoError(t, err)
		assert.Equal(t, want[kt], seal.SignInfo.SignatureAlgorithm, kt)
		assert.Equal(t, f.cert, seal.SignInfo.Cert)
	}
}

func TestTamperDetection(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(string(kt), func(t *testing.T) {
			f := newFixture(t, kt)
			encoded := f.build(t)
			seal, err := ses.Decode(encoded)
			require.NoError(t, err)
			info, err := seal.SealInfo.Encode()
			require.NoError(t, err)
			start := bytes.Index(encoded, info)
			require.Positive(t, start)

			v := NewVerifier(nil, nil)
			rnd := mrand.New(mrand.NewPCG(1, uint64(len(encoded))))
			for i := 0; i < 200; i++ {
				pos := start + rnd.IntN(len(info))
				tampered := bytes.Clone(encoded)
				tampered[pos] ^= byte(1 + rnd.IntN(255))

				res := v.Verify(t.Context(), tampered)
				require.NotEqual(t, Valid, res.Status, "flip at %d", pos)
				if res.Status != MalformedStructure {
					require.Equal(t, SignatureMismatch, res.Status, "flip at %d", pos)
				}
			}
		})
	}
}

func TestCertificateSwap(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(string(kt), func(t *testing.T) {
			f := newFixture(t, kt)
			other := newFixture(t, kt)

			seal, err := ses.Decode(f.build(t))
			require.NoError(t, err)
			seal.SignInfo.Cert = other.cert
			swapped, err := seal.Encode()
			require.NoError(t, err)

			res := NewVerifier(nil, nil).Verify(t.Context(), swapped)
			assert.Equal(t, SignatureMismatch, res.Status)
			require.NotNil(t, res.Signer)
			assert.Equal(t, other.cert, res.Signer.Raw)
		})
	}
}

func TestValidityWindow(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeECDSAP256)
	encoded := f.build(t)
	v := NewVerifier(nil, nil)
	start, end := f.now, f.now.AddDate(2, 0, 0)

	tests := []struct {
		name        string
		at          time.Time
		want        Status
		signerValid bool
	}{
		{"before certificate", start.Add(-time.Hour), NotYetValid, false},
		{"before start", start.Add(-time.Second), NotYetValid, true},
		{"at start", start, Valid, true},
		{"inside", start.AddDate(1, 0, 0), Valid, true},
		{"at end", end, Valid, true},
		{"after end", end.Add(time.Second), Expired, true},
		{"after certificate", start.AddDate(4, 0, 0), Expired, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.VerifyAt(t.Context(), encoded, tt.at)
			assert.Equal(t, tt.want, res.Status, "%v", res.Err)
			assert.Equal(t, tt.signerValid, res.SignerValid)
		})
	}

	t.Run("tampered and expired", func(t *testing.T) {
		at := bytes.Index(encoded, f.image)
		tampered := bytes.Clone(encoded)
		tampered[at+3] ^= 0x80
		res := v.VerifyAt(t.Context(), tampered, end.AddDate(1, 0, 0))
		assert.Equal(t, SignatureMismatch, res.Status)
	})
}

func TestVerifyTruncated(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeSM2)
	encoded := f.build(t)
	v := NewVerifier(nil, nil)

	for n := 0; n < len(encoded); n += 7 {
		res := v.Verify(t.Context(), encoded[:n])
		require.Equal(t, MalformedStructure, res.Status, "prefix of %d bytes", n)
		require.ErrorIs(t, res.Err, der.ErrTruncatedInput, "prefix of %d bytes", n)
		require.Nil(t, res.Seal)
	}
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeECDSAP256)
	seal, err := ses.Decode(f.build(t))
	require.NoError(t, err)
	seal.SignInfo.SignatureAlgorithm = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	encoded, err := seal.Encode()
	require.NoError(t, err)

	res := NewVerifier(nil, nil).Verify(t.Context(), encoded)
	assert.Equal(t, UnsupportedAlgorithm, res.Status)
	assert.ErrorIs(t, res.Err, signing.ErrUnsupportedAlgorithm)

	ecdsaOnly, err := signing.NewRegistry(signing.ECDSA{})
	require.NoError(t, err)
	sm2Seal := newFixture(t, credentials.KeyTypeSM2).build(t)
	res = NewVerifier(ecdsaOnly, nil).Verify(t.Context(), sm2Seal)
	assert.Equal(t, UnsupportedAlgorithm, res.Status)
}

// countingService records Sign calls and signs with ECDSA.
type countingService struct {
	signing.ECDSA
	calls int
	err   error
}

func (c *countingService) Sign(ctx context.Context, message []byte, key crypto.PrivateKey) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.ECDSA.Sign(ctx, message, key)
}

func TestBuildValidationFailsBeforeSigning(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeECDSAP256)
	svc := &countingService{}
	registry, err := signing.NewRegistry(svc)
	require.NoError(t, err)
	b := NewBuilder(registry, nil)

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"missing header", func(r *Request) { r.Header = nil }},
		{"empty seal id", func(r *Request) { r.SealID = "" }},
		{"missing property", func(r *Request) { r.Property = nil }},
		{"reversed window", func(r *Request) {
			r.Property.ValidEnd = r.Property.ValidStart.Add(-time.Hour)
		}},
		{"empty cert list", func(r *Request) { r.Property.CertList = nil }},
		{"zero width picture", func(r *Request) { r.Picture.Width = 0 }},
		{"missing signing certificate", func(r *Request) { r.SigningCertificate = nil }},
		{"garbage signing certificate", func(r *Request) { r.SigningCertificate = []byte("garbage") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(t)
			tt.mutate(&req)
			seal, err := b.Build(t.Context(), req)
			require.ErrorIs(t, err, ses.ErrValidation)
			assert.Nil(t, seal)
		})
	}
	assert.Zero(t, svc.calls)
}

func TestBuildSigningErrors(t *testing.T) {
	ecdsaFix := newFixture(t, credentials.KeyTypeECDSAP256)
	sm2Fix := newFixture(t, credentials.KeyTypeSM2)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("hsm unavailable")
	failing, err := signing.NewRegistry(&countingService{err: boom})
	require.NoError(t, err)

	tests := []struct {
		name     string
		builder  *Builder
		ctx      context.Context
		mutate   func(r *Request)
		wantErr  error
		wantAlgo string
	}{
		{
			name:    "key of another certificate",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningCertificate = newFixture(t, credentials.KeyTypeECDSAP256).cert },
			wantErr: ErrCertificateMismatch, wantAlgo: "ecdsa-p256",
		},
		{
			name:    "sm2 key with ecdsa certificate",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningKey = sm2Fix.key },
			wantErr: ErrCertificateMismatch, wantAlgo: "sm2",
		},
		{
			name:    "unsupported key",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningKey = edKey },
			wantErr: signing.ErrUnsupportedAlgorithm,
		},
		{
			name:    "missing key",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningKey = nil },
			wantErr: signing.ErrKeyMismatch,
		},
		{
			name:    "typed nil ecdsa key",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningKey = (*ecdsa.PrivateKey)(nil) },
			wantErr: signing.ErrUnsupportedAlgorithm,
		},
		{
			name:    "typed nil sm2 key",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.SigningKey = (*sm2.PrivateKey)(nil) },
			wantErr: signing.ErrUnsupportedAlgorithm,
		},
		{
			name:    "typed nil key with explicit algorithm",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate: func(r *Request) {
				r.SigningKey = (*ecdsa.PrivateKey)(nil)
				r.Algorithm = signing.OIDECDSAWithSHA256
			},
			wantErr: signing.ErrKeyMismatch,
		},
		{
			name:    "algorithm does not fit key",
			builder: NewBuilder(nil, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) { r.Algorithm = signing.OIDSM2WithSM3 },
			wantErr: signing.ErrKeyMismatch,
		},
		{
			name:    "service failure",
			builder: NewBuilder(failing, nil),
			ctx:     t.Context(),
			mutate:  func(r *Request) {},
			wantErr: boom, wantAlgo: "ecdsa-p256",
		},
		{
			name:    "cancelled",
			builder: NewBuilder(nil, nil),
			ctx:     cancelled,
			mutate:  func(r *Request) {},
			wantErr: context.Canceled, wantAlgo: "ecdsa-p256",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ecdsaFix.request(t)
			tt.mutate(&req)
			seal, err := tt.builder.Build(tt.ctx, req)
			require.Error(t, err)
			assert.Nil(t, seal)

			var serr *SigningError
			require.ErrorAs(t, err, &serr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantAlgo, serr.Algorithm)
		})
	}
}

func TestBuildWithExplicitAlgorithm(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeSM2)
	req := f.request(t)
	req.Algorithm = signing.OIDSM2WithSM3
	seal, err := NewBuilder(nil, nil).Build(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, signing.OIDSM2WithSM3, seal.SignInfo.SignatureAlgorithm)
}

func TestConcurrentVerification(t *testing.T) {
	f := newFixture(t, credentials.KeyTypeECDSAP256)
	encoded := f.build(t)
	v := NewVerifier(nil, nil)

	var wg sync.WaitGroup
	statuses := make([]Status, 16)
	for i := range statuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = v.Verify(context.Background(), encoded).Status
		}()
	}
	wg.Wait()
	for _, s := range statuses {
		assert.Equal(t, Valid, s)
	}
}

func TestVerifySealAtRejectsIncompleteSeal(t *testing.T) {
	v := NewVerifier(nil, nil)
	assert.Equal(t, MalformedStructure, v.VerifySealAt(t.Context(), nil, time.Now()).Status)
	assert.Equal(t, MalformedStructure, v.VerifySealAt(t.Context(), &ses.Seal{}, time.Now()).Status)
}

func TestNewSealID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewSealID()
		assert.Len(t, id, 32)
		assert.NotContains(t, id, "-")
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{Valid, SignatureMismatch, Expired, NotYetValid, MalformedStructure, UnsupportedAlgorithm} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s Status
	assert.Error(t, s.UnmarshalText([]byte("Bogus")))
}
