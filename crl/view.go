package crl

import (
	"fmt"

	"github.com/letsencrypt-icao/vdsnc/asn1der"
)

// View is a parsed CertificateList ::= SEQUENCE { tbsCertList,
// signatureAlgorithm, signatureValue }, RFC 5280 §5.1. Like x509view's
// Certificate, it locates tbsCertList's fields by ASN.1 type: the
// revokedCertificates field is OPTIONAL, so a CRL with no revocations at
// all omits it entirely rather than encoding an empty SEQUENCE, and a
// fixed-index read (the reference implementation's revokedCertificates at
// position 5) would silently pick up whatever optional field follows it.
type View struct {
	root       asn1der.Ref
	tbs        asn1der.Ref
	revoked    asn1der.Ref
	hasRevoked bool
}

// Parse decodes der as a CertificateList.
func Parse(der []byte) (*View, error) {
	_, root, err := asn1der.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("crl: %w", err)
	}
	if root.Node().Tag != asn1der.TagSequence || root.NumChildren() != 3 {
		return nil, fmt.Errorf("crl: root is not a 3-element CertificateList SEQUENCE")
	}
	tbs, ok := root.Child(0)
	if !ok || tbs.Node().Tag != asn1der.TagSequence {
		return nil, fmt.Errorf("crl: missing tbsCertList")
	}
	v := &View{root: root, tbs: tbs}
	v.walkTBS()
	return v, nil
}

// walkTBS locates revokedCertificates by type: tbsCertList ::= SEQUENCE {
// version OPTIONAL, signature AlgorithmIdentifier, issuer Name,
// thisUpdate Time, nextUpdate Time OPTIONAL,
// revokedCertificates SEQUENCE OF SEQUENCE { ... } OPTIONAL,
// crlExtensions [0] OPTIONAL }. Only revokedCertificates (a bare SEQUENCE
// OF, universal class) is needed here, so this walk just looks for the
// first top-level SEQUENCE child after the fixed issuer/signature/version
// prefix whose children are themselves SEQUENCEs -- doing so without
// depending on which of the other OPTIONAL fields preceded it.
func (v *View) walkTBS() {
	children := v.tbs.Node().Children
	for _, idx := range children {
		r := asn1der.Ref{Arena: v.tbs.Arena, Index: idx}
		n := r.Node()
		if n.Class != asn1der.ClassUniversal || n.Tag != asn1der.TagSequence {
			continue
		}
		// Both issuer (a Name, i.e. SEQUENCE OF SET) and
		// revokedCertificates (SEQUENCE OF SEQUENCE) are universal
		// SEQUENCEs; distinguish by the tag of their own children.
		if n.NumChildren() == 0 {
			continue
		}
		first, ok := r.Child(0)
		if !ok || first.Node().Tag != asn1der.TagSequence {
			continue // issuer's RDNs are SETs, not SEQUENCEs
		}
		v.revoked = r
		v.hasRevoked = true
		break
	}
}

// TBSRaw returns the exact DER bytes of tbsCertList, the message a CRL's
// signature is verified over.
func (v *View) TBSRaw() []byte { return v.tbs.Node().Raw }

// SignatureAlgorithmOID returns the dotted OID of the outer
// CertificateList.signatureAlgorithm field.
func (v *View) SignatureAlgorithmOID() (string, error) {
	algID, ok := v.root.Child(1)
	if !ok || algID.Node().Tag != asn1der.TagSequence {
		return "", fmt.Errorf("crl: missing signatureAlgorithm")
	}
	oidNode, ok := algID.Child(0)
	if !ok {
		return "", fmt.Errorf("crl: signatureAlgorithm has no OID")
	}
	oid, ok := oidNode.AsString()
	if !ok {
		return "", fmt.Errorf("crl: signatureAlgorithm OID is not decodable")
	}
	return oid, nil
}

// Signature returns the CertificateList.signatureValue BIT STRING body.
func (v *View) Signature() ([]byte, error) {
	sig, ok := v.root.Child(2)
	if !ok || sig.Node().Tag != asn1der.TagBitString {
		return nil, fmt.Errorf("crl: missing signatureValue")
	}
	b, ok := sig.AsBytes()
	if !ok {
		return nil, fmt.Errorf("crl: signatureValue not decoded")
	}
	return b, nil
}

// IsRevoked reports whether serialNumber (raw INTEGER bytes) appears as
// some entry's userCertificate in revokedCertificates. A CRL with no
// revokedCertificates field present trivially reports false.
func (v *View) IsRevoked(serialNumber []byte) bool {
	if !v.hasRevoked {
		return false
	}
	for i := 0; i < v.revoked.NumChildren(); i++ {
		entry, ok := v.revoked.Child(i)
		if !ok {
			continue
		}
		userCert, ok := entry.Child(0)
		if !ok || userCert.Node().Tag != asn1der.TagInteger {
			continue
		}
		b, ok := userCert.AsBytes()
		if !ok {
			continue
		}
		if bytesEqual(b, serialNumber) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
