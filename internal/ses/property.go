package ses

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/der"
)

// SealType is the closed set of seal owner kinds.
type SealType int64

const (
	Organization SealType = 1
	Individual   SealType = 2
)

func (t SealType) String() string {
	switch t {
	case Organization:
		return "organization"
	case Individual:
		return "individual"
	default:
		return fmt.Sprintf("SealType(%d)", int64(t))
	}
}

// Known reports whether t is one of the defined seal types.
func (t SealType) Known() bool {
	return t == Organization || t == Individual
}

// ParseSealType accepts the names returned by String.
func ParseSealType(s string) (SealType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organization", "org":
		return Organization, nil
	case "individual", "personal", "person":
		return Individual, nil
	}
	return 0, invalid("property.type", "unknown seal type %q", s)
}

// Validity places an instant relative to a validity window.
type Validity int

const (
	WithinValidity Validity = iota
	BeforeValidity
	AfterValidity
)

func (v Validity) String() string {
	switch v {
	case WithinValidity:
		return "within"
	case BeforeValidity:
		return "before"
	case AfterValidity:
		return "after"
	default:
		return fmt.Sprintf("Validity(%d)", int(v))
	}
}

// PropertyInfo describes who owns the seal, the certificates bound to it and
// when it may be used.
type PropertyInfo struct {
	Type       SealType
	Name       string
	CertList   [][]byte
	CreateDate time.Time
	ValidStart time.Time
	ValidEnd   time.Time
}

// NewPropertyInfo builds a validated PropertyInfo. Times are stored in UTC
// with whole second precision, which is what the encoding can carry.
func NewPropertyInfo(typ SealType, name string, certList [][]byte, createDate, validStart, validEnd time.Time) (*PropertyInfo, error) {
	p := &PropertyInfo{
		Type:       typ,
		Name:       name,
		CertList:   certList,
		CreateDate: normalizeTime(createDate),
		ValidStart: normalizeTime(validStart),
		ValidEnd:   normalizeTime(validEnd),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Validate checks the PropertyInfo invariants.
func (p *PropertyInfo) Validate() error {
	if !p.Type.Known() {
		return invalid("property.type", "unknown seal type %d", int64(p.Type))
	}
	if p.Name == "" {
		return invalid("property.name", "empty name")
	}
	if !utf8.ValidString(p.Name) {
		return invalid("property.name", "invalid UTF-8")
	}
	if len(p.CertList) == 0 {
		return invalid("property.certList", "no certificates")
	}
	for i, c := range p.CertList {
		if _, err := certs.Parse(c); err != nil {
			return invalid(fmt.Sprintf("property.certList[%d]", i), "%v", err)
		}
	}
	for _, f := range []struct {
		field string
		t     time.Time
	}{
		{"property.createDate", p.CreateDate},
		{"property.validStart", p.ValidStart},
		{"property.validEnd", p.ValidEnd},
	} {
		if err := der.CheckUTCTime(f.t); err != nil {
			return invalid(f.field, "%v", err)
		}
	}
	if p.ValidStart.After(p.ValidEnd) {
		return invalid("property.validStart", "valid from %s is after valid to %s",
			p.ValidStart.Format(time.RFC3339), p.ValidEnd.Format(time.RFC3339))
	}
	return nil
}

// ValidityAt places t relative to [ValidStart, ValidEnd], both inclusive.
func (p *PropertyInfo) ValidityAt(t time.Time) Validity {
	switch {
	case t.Before(p.ValidStart):
		return BeforeValidity
	case t.After(p.ValidEnd):
		return AfterValidity
	default:
		return WithinValidity
	}
}

func (p *PropertyInfo) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		der.AddInteger(b, int64(p.Type))
		der.AddUTF8String(b, p.Name)
		der.AddSequence(b, func(b *cryptobyte.Builder) {
			for _, c := range p.CertList {
				der.AddOctetString(b, c)
			}
		})
		der.AddUTCTime(b, p.CreateDate)
		der.AddUTCTime(b, p.ValidStart)
		der.AddUTCTime(b, p.ValidEnd)
	})
}

// Encode returns the DER encoding of the property info.
func (p *PropertyInfo) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(p.marshal)
}

func readPropertyInfo(d *der.Decoder, name string) (*PropertyInfo, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}

	var p PropertyInfo
	typ, err := seq.Integer("type")
	if err != nil {
		return nil, err
	}
	p.Type = SealType(typ)
	if !p.Type.Known() {
		e := seq.Fail(der.UnexpectedTag, "type", "unknown seal type")
		e.Expected, e.Actual = "1 (organization) or 2 (individual)", fmt.Sprint(typ)
		return nil, e
	}
	if p.Name, err = seq.UTF8String("name"); err != nil {
		return nil, err
	}

	list, err := seq.Sequence("certList")
	if err != nil {
		return nil, err
	}
	for i := 0; !list.Empty(); i++ {
		c, err := list.OctetString(fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		p.CertList = append(p.CertList, c)
	}

	if p.CreateDate, err = seq.UTCTime("createDate"); err != nil {
		return nil, err
	}
	if p.ValidStart, err = seq.UTCTime("validStart"); err != nil {
		return nil, err
	}
	if p.ValidEnd, err = seq.UTCTime("validEnd"); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodePropertyInfo parses a DER encoded property info.
func DecodePropertyInfo(data []byte) (*PropertyInfo, error) {
	return decodeAll(data, "property", readPropertyInfo)
}
