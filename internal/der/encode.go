// Package der implements the distinguished encoding of the handful of ASN.1
// kinds used by electronic seals. Encoding goes through cryptobyte builders;
// decoding is strict, every byte sequence that is not the single canonical
// encoding of a value is rejected with a typed *Error.
package der

import (
	encasn1 "encoding/asn1"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// utcTimeLayout is the only UTCTime form accepted: seconds present, Zulu time.
const utcTimeLayout = "060102150405Z"

// Marshal runs f against a fresh builder and returns the encoded bytes.
func Marshal(f func(b *cryptobyte.Builder)) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	f(b)
	return b.Bytes()
}

// AddSequence appends a SEQUENCE whose content is produced by f.
func AddSequence(b *cryptobyte.Builder, f func(b *cryptobyte.Builder)) {
	b.AddASN1(asn1.SEQUENCE, f)
}

// AddInteger appends an INTEGER in minimal two's complement form.
func AddInteger(b *cryptobyte.Builder, v int64) {
	b.AddASN1Int64(v)
}

// AddIA5String appends an IA5String. Non-ASCII input poisons the builder.
func AddIA5String(b *cryptobyte.Builder, s string) {
	if err := CheckASCII(s); err != nil {
		b.SetError(err)
		return
	}
	b.AddASN1(asn1.IA5String, func(c *cryptobyte.Builder) {
		c.AddBytes([]byte(s))
	})
}

// AddUTF8String appends a UTF8String. Invalid UTF-8 poisons the builder.
func AddUTF8String(b *cryptobyte.Builder, s string) {
	if !utf8.ValidString(s) {
		b.SetError(fmt.Errorf("der: invalid UTF-8 in %q", s))
		return
	}
	b.AddASN1(asn1.UTF8String, func(c *cryptobyte.Builder) {
		c.AddBytes([]byte(s))
	})
}

// AddOctetString appends an OCTET STRING.
func AddOctetString(b *cryptobyte.Builder, data []byte) {
	b.AddASN1OctetString(data)
}

// AddBitString appends a byte aligned BIT STRING (zero unused bits).
func AddBitString(b *cryptobyte.Builder, data []byte) {
	b.AddASN1BitString(data)
}

// AddObjectIdentifier appends an OBJECT IDENTIFIER.
func AddObjectIdentifier(b *cryptobyte.Builder, oid encasn1.ObjectIdentifier) {
	b.AddASN1ObjectIdentifier(oid)
}

// AddUTCTime appends t as YYMMDDHHMMSSZ. Sub-second precision is dropped.
func AddUTCTime(b *cryptobyte.Builder, t time.Time) {
	if err := CheckUTCTime(t); err != nil {
		b.SetError(err)
		return
	}
	b.AddASN1UTCTime(t.UTC().Truncate(time.Second))
}

// AddBoolean appends a BOOLEAN.
func AddBoolean(b *cryptobyte.Builder, v bool) {
	b.AddASN1Boolean(v)
}

// CheckASCII reports an error if s contains a byte outside 0x00-0x7F.
func CheckASCII(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return fmt.Errorf("der: non-ASCII byte 0x%02x at offset %d", s[i], i)
		}
	}
	return nil
}

// CheckUTCTime reports an error if t cannot be represented as a UTCTime.
func CheckUTCTime(t time.Time) error {
	if y := t.UTC().Year(); y < 1950 || y > 2049 {
		return fmt.Errorf("der: year %d outside UTCTime range 1950-2049", y)
	}
	return nil
}
