package der

import (
	encasn1 "encoding/asn1"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// maxLengthOctets bounds the long form length field. Nothing in a seal comes
// close to 4 GiB.
const maxLengthOctets = 4

// Decoder reads consecutive elements from a DER buffer. A Decoder obtained from
// Sequence is scoped to the content of that SEQUENCE and prefixes its errors
// with the sequence's path.
type Decoder struct {
	in   cryptobyte.String
	path string
}

// NewDecoder returns a Decoder over data. path names the top level value in
// error messages.
func NewDecoder(data []byte, path string) *Decoder {
	return &Decoder{in: cryptobyte.String(data), path: path}
}

// Empty reports whether all input has been consumed.
func (d *Decoder) Empty() bool {
	return d.in.Empty()
}

// Finish fails with MalformedStructure if unread bytes remain. Inside a
// SEQUENCE this means the declared length does not match what its fields consumed.
func (d *Decoder) Finish() error {
	if !d.in.Empty() {
		return newError(MalformedStructure, d.path, "%d trailing bytes after last element", len(d.in))
	}
	return nil
}

// PeekTag reports whether the next element carries tag.
func (d *Decoder) PeekTag(tag asn1.Tag) bool {
	return d.in.PeekASN1Tag(tag)
}

// Fail returns an error of kind for the element name, placed under the path
// of d. Callers use it for content rules the generic readers cannot know.
func (d *Decoder) Fail(kind Kind, name, format string, args ...any) *Error {
	return newError(kind, d.field(name), format, args...)
}

func (d *Decoder) field(name string) string {
	if d.path == "" {
		return name
	}
	if name == "" {
		return d.path
	}
	return d.path + "." + name
}

// element validates the identifier and length octets of the next element and
// consumes it. It returns the full element and its content.
func (d *Decoder) element(tag asn1.Tag, name string) (cryptobyte.String, []byte, error) {
	field := d.field(name)
	in := []byte(d.in)

	if len(in) == 0 {
		return nil, nil, &Error{Kind: TruncatedInput, Field: field, Msg: "input exhausted", Expected: tagName(tag)}
	}
	if in[0]&0x1f == 0x1f {
		return nil, nil, &Error{Kind: UnexpectedTag, Field: field, Msg: "high tag number form", Expected: tagName(tag), Actual: fmt.Sprintf("0x%02x", in[0])}
	}
	if asn1.Tag(in[0]) != tag {
		return nil, nil, &Error{Kind: UnexpectedTag, Field: field, Expected: tagName(tag), Actual: tagName(asn1.Tag(in[0]))}
	}

	hdr, length, err := readLength(in, field)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(in)-hdr) < length {
		return nil, nil, &Error{Kind: TruncatedInput, Field: field, Msg: "content shorter than declared length",
			Expected: fmt.Sprintf("%d bytes", length), Actual: fmt.Sprintf("%d bytes", len(in)-hdr)}
	}

	var elem cryptobyte.String
	if !d.in.ReadASN1Element(&elem, tag) {
		return nil, nil, newError(MalformedStructure, field, "unreadable element")
	}
	return elem, []byte(elem[hdr:]), nil
}

// readLength parses the length octets of the element starting at in[0] and
// returns the header size and the content length.
func readLength(in []byte, field string) (int, uint64, error) {
	if len(in) < 2 {
		return 0, 0, newError(TruncatedInput, field, "missing length octets")
	}
	first := in[1]
	switch {
	case first < 0x80:
		return 2, uint64(first), nil
	case first == 0x80:
		return 0, 0, newError(NonCanonicalEncoding, field, "indefinite length")
	case first == 0xff:
		return 0, 0, newError(MalformedStructure, field, "reserved length octet 0xff")
	}

	n := int(first & 0x7f)
	if n > maxLengthOctets {
		return 0, 0, newError(MalformedStructure, field, "length field of %d octets", n)
	}
	if len(in) < 2+n {
		return 0, 0, newError(TruncatedInput, field, "missing long form length octets")
	}
	if in[2] == 0 {
		return 0, 0, newError(NonCanonicalEncoding, field, "leading zero in length")
	}
	var length uint64
	for _, b := range in[2 : 2+n] {
		length = length<<8 | uint64(b)
	}
	if length < 0x80 {
		return 0, 0, newError(NonCanonicalEncoding, field, "long form used for length %d", length)
	}
	return 2 + n, length, nil
}

// Sequence consumes a SEQUENCE and returns a Decoder over its content.
func (d *Decoder) Sequence(name string) (*Decoder, error) {
	_, content, err := d.element(asn1.SEQUENCE, name)
	if err != nil {
		return nil, err
	}
	return &Decoder{in: cryptobyte.String(content), path: d.field(name)}, nil
}

// Boolean consumes a BOOLEAN. DER allows only 0x00 and 0xFF as content.
func (d *Decoder) Boolean(name string) (bool, error) {
	_, content, err := d.element(asn1.BOOLEAN, name)
	if err != nil {
		return false, err
	}
	field := d.field(name)
	if len(content) != 1 {
		return false, newError(MalformedStructure, field, "boolean of %d octets", len(content))
	}
	switch content[0] {
	case 0x00:
		return false, nil
	case 0xff:
		return true, nil
	default:
		return false, &Error{Kind: NonCanonicalEncoding, Field: field, Msg: "boolean not 0x00 or 0xff", Actual: fmt.Sprintf("0x%02x", content[0])}
	}
}

// Integer consumes an INTEGER that fits in an int64.
func (d *Decoder) Integer(name string) (int64, error) {
	elem, content, err := d.element(asn1.INTEGER, name)
	if err != nil {
		return 0, err
	}
	field := d.field(name)
	if len(content) == 0 {
		return 0, newError(MalformedStructure, field, "empty integer")
	}
	if len(content) > 1 {
		if (content[0] == 0x00 && content[1]&0x80 == 0) || (content[0] == 0xff && content[1]&0x80 != 0) {
			return 0, newError(NonCanonicalEncoding, field, "integer not minimally encoded")
		}
	}
	var v int64
	if !elem.ReadASN1Integer(&v) {
		return 0, newError(MalformedStructure, field, "integer out of int64 range")
	}
	return v, nil
}

// IA5String consumes an IA5String; every byte must be ASCII.
func (d *Decoder) IA5String(name string) (string, error) {
	_, content, err := d.element(asn1.IA5String, name)
	if err != nil {
		return "", err
	}
	s := string(content)
	if err := CheckASCII(s); err != nil {
		return "", newError(MalformedStructure, d.field(name), "%v", err)
	}
	return s, nil
}

// UTF8String consumes a UTF8String.
func (d *Decoder) UTF8String(name string) (string, error) {
	_, content, err := d.element(asn1.UTF8String, name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", newError(MalformedStructure, d.field(name), "invalid UTF-8")
	}
	return string(content), nil
}

// OctetString consumes an OCTET STRING. The returned slice is a copy.
func (d *Decoder) OctetString(name string) ([]byte, error) {
	_, content, err := d.element(asn1.OCTET_STRING, name)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, content...), nil
}

// BitString consumes a byte aligned BIT STRING and returns its payload.
func (d *Decoder) BitString(name string) ([]byte, error) {
	elem, content, err := d.element(asn1.BIT_STRING, name)
	if err != nil {
		return nil, err
	}
	field := d.field(name)
	if len(content) == 0 {
		return nil, newError(MalformedStructure, field, "missing unused bits octet")
	}
	if content[0] != 0 {
		return nil, newError(MalformedStructure, field, "%d unused bits, only byte aligned bit strings are supported", content[0])
	}
	var bs encasn1.BitString
	if !elem.ReadASN1BitString(&bs) {
		return nil, newError(MalformedStructure, field, "invalid bit string")
	}
	return append([]byte{}, bs.Bytes...), nil
}

// ObjectIdentifier consumes an OBJECT IDENTIFIER.
func (d *Decoder) ObjectIdentifier(name string) (encasn1.ObjectIdentifier, error) {
	elem, content, err := d.element(asn1.OBJECT_IDENTIFIER, name)
	if err != nil {
		return nil, err
	}
	field := d.field(name)
	// A sub-identifier starting with 0x80 has a redundant leading zero group.
	for i, b := range content {
		if b == 0x80 && (i == 0 || content[i-1]&0x80 == 0) {
			return nil, newError(NonCanonicalEncoding, field, "object identifier arc with leading zero group")
		}
	}
	var oid encasn1.ObjectIdentifier
	if !elem.ReadASN1ObjectIdentifier(&oid) {
		return nil, newError(MalformedStructure, field, "invalid object identifier")
	}
	return oid, nil
}

// UTCTime consumes a UTCTime in the exact form YYMMDDHHMMSSZ.
func (d *Decoder) UTCTime(name string) (time.Time, error) {
	elem, content, err := d.element(asn1.UTCTime, name)
	if err != nil {
		return time.Time{}, err
	}
	field := d.field(name)

	var t time.Time
	parsed := elem.ReadASN1UTCTime(&t)
	if !isCanonicalUTCTime(content) {
		if parsed {
			return time.Time{}, &Error{Kind: NonCanonicalEncoding, Field: field, Msg: "UTCTime not in YYMMDDHHMMSSZ form", Expected: utcTimeLayout, Actual: fmt.Sprintf("%q", content)}
		}
		return time.Time{}, &Error{Kind: MalformedStructure, Field: field, Msg: "invalid UTCTime", Actual: fmt.Sprintf("%q", content)}
	}
	if !parsed {
		return time.Time{}, &Error{Kind: MalformedStructure, Field: field, Msg: "invalid calendar date", Actual: fmt.Sprintf("%q", content)}
	}
	return t.UTC(), nil
}

func isCanonicalUTCTime(content []byte) bool {
	if len(content) != len(utcTimeLayout) || content[len(content)-1] != 'Z' {
		return false
	}
	for _, c := range content[:len(content)-1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func tagName(tag asn1.Tag) string {
	switch tag {
	case asn1.BOOLEAN:
		return "BOOLEAN"
	case asn1.INTEGER:
		return "INTEGER"
	case asn1.BIT_STRING:
		return "BIT STRING"
	case asn1.OCTET_STRING:
		return "OCTET STRING"
	case asn1.OBJECT_IDENTIFIER:
		return "OBJECT IDENTIFIER"
	case asn1.UTF8String:
		return "UTF8String"
	case asn1.IA5String:
		return "IA5String"
	case asn1.UTCTime:
		return "UTCTime"
	case asn1.SEQUENCE:
		return "SEQUENCE"
	default:
		return fmt.Sprintf("tag 0x%02x", uint8(tag))
	}
}
