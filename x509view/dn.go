package x509view

import (
	"fmt"
	"strings"

	"github.com/letsencrypt-icao/vdsnc/asn1der"
)

// shortNames maps the common attribute-type OIDs to the RFC-1779/RFC-2253
// short names used when rendering a distinguished name, falling back to
// the dotted OID for anything not in this table.
var shortNames = map[string]string{
	"2.5.4.3":                     "CN",
	"2.5.4.6":                     "C",
	"2.5.4.7":                     "L",
	"2.5.4.8":                     "ST",
	"2.5.4.9":                     "STREET",
	"2.5.4.10":                    "O",
	"2.5.4.11":                    "OU",
	"2.5.4.5":                     "SERIALNUMBER",
	"0.9.2342.19200300.100.1.25":  "DC",
	"0.9.2342.19200300.100.1.1":   "UID",
	"1.2.840.113549.1.9.1":        "EMAILADDRESS",
}

// quoteTriggers is the set of characters whose presence in an attribute
// value forces RFC-1779 double-quote wrapping.
const quoteTriggers = ",+=\n<>#;\\"

// formatName renders a Name ::= SEQUENCE OF RelativeDistinguishedName as
// "TYPE=value, TYPE=value, ...", using short type aliases where known and
// quoting values that contain RDN-separator characters.
func formatName(name asn1der.Ref) (string, error) {
	var rdnStrs []string
	for i := 0; i < name.NumChildren(); i++ {
		rdn, ok := name.Child(i)
		if !ok || rdn.Node().Tag != asn1der.TagSet {
			return "", fmt.Errorf("%w: Name element %d is not a SET (RDN)", ErrMalformed, i)
		}
		var atvStrs []string
		for j := 0; j < rdn.NumChildren(); j++ {
			atv, ok := rdn.Child(j)
			if !ok || atv.Node().Tag != asn1der.TagSequence {
				return "", fmt.Errorf("%w: RDN element %d is not an AttributeTypeAndValue", ErrMalformed, j)
			}
			oidNode, ok := atv.Child(0)
			if !ok {
				return "", fmt.Errorf("%w: AttributeTypeAndValue missing type", ErrMalformed)
			}
			oid, ok := oidNode.AsString()
			if !ok {
				return "", fmt.Errorf("%w: AttributeTypeAndValue type not decodable", ErrMalformed)
			}
			valueNode, ok := atv.Child(1)
			if !ok {
				return "", fmt.Errorf("%w: AttributeTypeAndValue missing value", ErrMalformed)
			}
			value, _ := valueNode.AsString()

			label := oid
			if alias, ok := shortNames[oid]; ok {
				label = alias
			}
			atvStrs = append(atvStrs, label+"="+quoteIfNeeded(value))
		}
		rdnStrs = append(rdnStrs, strings.Join(atvStrs, "+"))
	}
	return strings.Join(rdnStrs, ", "), nil
}

// attributeValue returns the first AttributeTypeAndValue's value within
// name whose type OID equals oid.
func attributeValue(name asn1der.Ref, oid string) (string, bool) {
	for i := 0; i < name.NumChildren(); i++ {
		rdn, ok := name.Child(i)
		if !ok {
			continue
		}
		for j := 0; j < rdn.NumChildren(); j++ {
			atv, ok := rdn.Child(j)
			if !ok {
				continue
			}
			oidNode, ok := atv.Child(0)
			if !ok {
				continue
			}
			atvOID, ok := oidNode.AsString()
			if !ok || atvOID != oid {
				continue
			}
			valueNode, ok := atv.Child(1)
			if !ok {
				continue
			}
			value, ok := valueNode.AsString()
			if !ok {
				continue
			}
			return value, true
		}
	}
	return "", false
}

func quoteIfNeeded(value string) string {
	if strings.ContainsAny(value, quoteTriggers) {
		return `"` + value + `"`
	}
	return value
}
