package ses

import (
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/evidenceledger/eseal/internal/der"
)

// Extension is one ExtData entry of the optional extDatas list:
//
//	ExtData ::= SEQUENCE {
//	    extnID    OBJECT IDENTIFIER,
//	    critical  BOOLEAN DEFAULT FALSE,
//	    extnValue OCTET STRING }
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

// Validate checks the Extension invariants.
func (e *Extension) Validate(field string) error {
	if len(e.ID) < 2 {
		return invalid(field+".extnID", "missing extension identifier")
	}
	return nil
}

func validateExtensions(exts []Extension) error {
	seen := make(map[string]bool, len(exts))
	for i := range exts {
		field := fmt.Sprintf("extDatas[%d]", i)
		if err := exts[i].Validate(field); err != nil {
			return err
		}
		id := exts[i].ID.String()
		if seen[id] {
			return invalid(field+".extnID", "duplicate extension %s", id)
		}
		seen[id] = true
	}
	return nil
}

// marshalExtensions writes the extDatas list. An empty list is omitted; the
// critical flag is written only when set, as DER requires for defaults.
func marshalExtensions(b *cryptobyte.Builder, exts []Extension) {
	if len(exts) == 0 {
		return
	}
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		for _, e := range exts {
			der.AddSequence(b, func(b *cryptobyte.Builder) {
				der.AddObjectIdentifier(b, e.ID)
				if e.Critical {
					der.AddBoolean(b, true)
				}
				der.AddOctetString(b, e.Value)
			})
		}
	})
}

func readExtensions(d *der.Decoder, name string) ([]Extension, error) {
	list, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	if list.Empty() {
		return nil, d.Fail(der.NonCanonicalEncoding, name, "empty extension list must be omitted")
	}

	var exts []Extension
	for i := 0; !list.Empty(); i++ {
		item, err := list.Sequence(fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		var e Extension
		if e.ID, err = item.ObjectIdentifier("extnID"); err != nil {
			return nil, err
		}
		if item.PeekTag(cbasn1.BOOLEAN) {
			if e.Critical, err = item.Boolean("critical"); err != nil {
				return nil, err
			}
			if !e.Critical {
				return nil, item.Fail(der.NonCanonicalEncoding, "critical", "default value FALSE must be omitted")
			}
		}
		if e.Value, err = item.OctetString("extnValue"); err != nil {
			return nil, err
		}
		if err := item.Finish(); err != nil {
			return nil, err
		}
		exts = append(exts, e)
	}
	return exts, nil
}
