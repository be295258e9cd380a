package der

import (
	encasn1 "encoding/asn1"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
)

func mustMarshal(t *testing.T, f func(b *cryptobyte.Builder)) []byte {
	t.Helper()
	out, err := Marshal(f)
	require.NoError(t, err)
	return out
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var derr *Error
	require.True(t, errors.As(err, &derr), "not a *der.Error: %v", err)
	require.Equal(t, kind, derr.Kind, "error: %v", err)
}

func TestIntegerEncoding(t *testing.T) {
	tests := []struct {
		value int64
		want  []byte
	}{
		{0, []byte{0x02, 0x01, 0x00}},
		{1, []byte{0x02, 0x01, 0x01}},
		{127, []byte{0x02, 0x01, 0x7f}},
		{128, []byte{0x02, 0x02, 0x00, 0x80}},
		{256, []byte{0x02, 0x02, 0x01, 0x00}},
		{-1, []byte{0x02, 0x01, 0xff}},
		{-128, []byte{0x02, 0x01, 0x80}},
		{-129, []byte{0x02, 0x02, 0xff, 0x7f}},
	}
	for _, tt := range tests {
		got := mustMarshal(t, func(b *cryptobyte.Builder) { AddInteger(b, tt.value) })
		assert.Equal(t, tt.want, got, "value %d", tt.value)

		v, err := NewDecoder(got, "n").Integer("")
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
	}
}

func TestIntegerRoundTripExtremes(t *testing.T) {
	for _, v := range []int64{math.MaxInt64, math.MinInt64, 40, 65535} {
		enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddInteger(b, v) })
		got, err := NewDecoder(enc, "n").Integer("")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestIntegerRejects(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		kind Kind
	}{
		{"empty content", []byte{0x02, 0x00}, MalformedStructure},
		{"redundant zero", []byte{0x02, 0x02, 0x00, 0x01}, NonCanonicalEncoding},
		{"redundant ones", []byte{0x02, 0x02, 0xff, 0x80}, NonCanonicalEncoding},
		{"too large", append([]byte{0x02, 0x09, 0x01}, make([]byte, 8)...), MalformedStructure},
		{"wrong tag", []byte{0x04, 0x01, 0x01}, UnexpectedTag},
		{"truncated content", []byte{0x02, 0x02, 0x01}, TruncatedInput},
		{"no input", []byte{}, TruncatedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.in, "version").Integer("")
			requireKind(t, err, tt.kind)
		})
	}
}

func TestUnexpectedTagReportsBothSides(t *testing.T) {
	_, err := NewDecoder([]byte{0x04, 0x00}, "header").Integer("version")
	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "header.version", derr.Field)
	assert.Equal(t, "INTEGER", derr.Expected)
	assert.Equal(t, "OCTET STRING", derr.Actual)
	assert.ErrorIs(t, err, ErrUnexpectedTag)
	assert.NotErrorIs(t, err, ErrTruncatedInput)
}

func TestLengthRules(t *testing.T) {
	long := make([]byte, 200)
	enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddOctetString(b, long) })
	assert.Equal(t, []byte{0x04, 0x81, 0xc8}, enc[:3])
	got, err := NewDecoder(enc, "data").OctetString("")
	require.NoError(t, err)
	assert.Equal(t, long, got)

	tests := []struct {
		name string
		in   []byte
		kind Kind
	}{
		{"long form for short length", []byte{0x04, 0x81, 0x01, 0xaa}, NonCanonicalEncoding},
		{"indefinite length", []byte{0x04, 0x80, 0xaa, 0x00, 0x00}, NonCanonicalEncoding},
		{"leading zero length octet", append([]byte{0x04, 0x82, 0x00, 0xc8}, long...), NonCanonicalEncoding},
		{"oversized length field", []byte{0x04, 0x85, 0x01, 0x00, 0x00, 0x00, 0x00}, MalformedStructure},
		{"missing length octets", []byte{0x04}, TruncatedInput},
		{"missing long length octets", []byte{0x04, 0x82, 0x01}, TruncatedInput},
		{"short content", []byte{0x04, 0x05, 0x01, 0x02}, TruncatedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.in, "data").OctetString("")
			requireKind(t, err, tt.kind)
		})
	}
}

func TestStrings(t *testing.T) {
	enc := mustMarshal(t, func(b *cryptobyte.Builder) {
		AddIA5String(b, "ES")
		AddUTF8String(b, "OFDRW测试用印章")
	})
	d := NewDecoder(enc, "")
	s, err := d.IA5String("id")
	require.NoError(t, err)
	assert.Equal(t, "ES", s)
	u, err := d.UTF8String("name")
	require.NoError(t, err)
	assert.Equal(t, "OFDRW测试用印章", u)
	require.NoError(t, d.Finish())

	_, err = Marshal(func(b *cryptobyte.Builder) { AddIA5String(b, "é") })
	assert.Error(t, err)
	_, err = Marshal(func(b *cryptobyte.Builder) { AddUTF8String(b, string([]byte{0xff})) })
	assert.Error(t, err)

	_, err = NewDecoder([]byte{0x16, 0x01, 0x80}, "vid").IA5String("")
	requireKind(t, err, MalformedStructure)
	_, err = NewDecoder([]byte{0x0c, 0x01, 0xff}, "name").UTF8String("")
	requireKind(t, err, MalformedStructure)
}

func TestBitString(t *testing.T) {
	enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddBitString(b, []byte{0xde, 0xad}) })
	assert.Equal(t, []byte{0x03, 0x03, 0x00, 0xde, 0xad}, enc)
	got, err := NewDecoder(enc, "sig").BitString("")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, got)

	_, err = NewDecoder([]byte{0x03, 0x02, 0x01, 0x80}, "sig").BitString("")
	requireKind(t, err, MalformedStructure)
	_, err = NewDecoder([]byte{0x03, 0x00}, "sig").BitString("")
	requireKind(t, err, MalformedStructure)
}

func TestObjectIdentifier(t *testing.T) {
	oid := encasn1.ObjectIdentifier{1, 2, 156, 10197, 1, 501}
	enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddObjectIdentifier(b, oid) })
	got, err := NewDecoder(enc, "alg").ObjectIdentifier("")
	require.NoError(t, err)
	assert.True(t, oid.Equal(got))

	_, err = NewDecoder([]byte{0x06, 0x03, 0x2a, 0x80, 0x01}, "alg").ObjectIdentifier("")
	requireKind(t, err, NonCanonicalEncoding)
}

func TestUTCTime(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 30, 15, 999, time.FixedZone("CST", 8*3600))
	enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddUTCTime(b, ts) })
	assert.Equal(t, "261018013015Z", string(enc[2:]))

	got, err := NewDecoder(enc, "createDate").UTCTime("")
	require.NoError(t, err)
	assert.True(t, got.Equal(ts.Truncate(time.Second)), "got %v", got)
	assert.Equal(t, time.UTC, got.Location())

	_, err = Marshal(func(b *cryptobyte.Builder) { AddUTCTime(b, time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)) })
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
		kind    Kind
	}{
		{"no seconds", "2610180130Z", NonCanonicalEncoding},
		{"offset form", "261018093015+0800", NonCanonicalEncoding},
		{"garbage", "not-a-time!!Z", MalformedStructure},
		{"month 13", "261318013015Z", MalformedStructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]byte{0x17, byte(len(tt.content))}, tt.content...)
			_, err := NewDecoder(in, "validEnd").UTCTime("")
			requireKind(t, err, tt.kind)
		})
	}
}

func TestSequence(t *testing.T) {
	enc := mustMarshal(t, func(b *cryptobyte.Builder) {
		AddSequence(b, func(b *cryptobyte.Builder) {
			AddIA5String(b, "ES")
			AddInteger(b, 1)
		})
	})
	assert.Equal(t, []byte{0x30, 0x07, 0x16, 0x02, 'E', 'S', 0x02, 0x01, 0x01}, enc)

	d := NewDecoder(enc, "")
	seq, err := d.Sequence("header")
	require.NoError(t, err)
	id, err := seq.IA5String("id")
	require.NoError(t, err)
	assert.Equal(t, "ES", id)
	_, err = seq.Integer("version")
	require.NoError(t, err)
	require.NoError(t, seq.Finish())
	require.NoError(t, d.Finish())

	// declared length covers one byte more than the fields consume
	padded := []byte{0x30, 0x04, 0x02, 0x01, 0x01, 0x00}
	seq, err = NewDecoder(padded, "").Sequence("header")
	require.NoError(t, err)
	_, err = seq.Integer("version")
	require.NoError(t, err)
	requireKind(t, seq.Finish(), MalformedStructure)

	// every strict prefix is truncated
	for i := 0; i < len(enc); i++ {
		_, err := NewDecoder(enc[:i], "").Sequence("header")
		requireKind(t, err, TruncatedInput)
	}
}

func TestBoolean(t *testing.T) {
	for _, v := range []bool{true, false} {
		enc := mustMarshal(t, func(b *cryptobyte.Builder) { AddBoolean(b, v) })
		got, err := NewDecoder(enc, "").Boolean("critical")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	tests := []struct {
		name string
		in   []byte
		kind Kind
	}{
		{"non canonical true", []byte{0x01, 0x01, 0x01}, NonCanonicalEncoding},
		{"two octets", []byte{0x01, 0x02, 0xff, 0xff}, MalformedStructure},
		{"empty", []byte{0x01, 0x00}, MalformedStructure},
		{"wrong tag", []byte{0x02, 0x01, 0xff}, UnexpectedTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.in, "ext").Boolean("critical")
			requireKind(t, err, tt.kind)
		})
	}
}

func TestPeekTag(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x01, 0xff, 0x04, 0x00}, "")
	assert.True(t, d.PeekTag(0x01))
	assert.False(t, d.PeekTag(0x04))
	_, err := d.Boolean("critical")
	require.NoError(t, err)
	assert.True(t, d.PeekTag(0x04))
	_, err = d.OctetString("value")
	require.NoError(t, err)
	assert.False(t, d.PeekTag(0x04))
}

func TestFailUsesDecoderPath(t *testing.T) {
	enc := []byte{0x30, 0x03, 0x02, 0x01, 0x07}
	seq, err := NewDecoder(enc, "seal").Sequence("property")
	require.NoError(t, err)
	e := seq.Fail(UnexpectedTag, "type", "unknown seal type %d", 7)
	assert.Equal(t, "seal.property.type", e.Field)
	assert.ErrorIs(t, e, ErrUnexpectedTag)
	assert.Equal(t, "UnexpectedTag at seal.property.type: unknown seal type 7", e.Error())
}
