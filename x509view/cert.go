// Package x509view is a typed façade over asn1der for X.509 certificates.
// Unlike crypto/x509, it never rejects a certificate for policy reasons
// (weak key, expired validity, unknown critical extension) and never
// fixes field positions by index -- tbsCertificate's optional version and
// unique-ID fields shift every subsequent index, so this package walks the
// sequence by ASN.1 type and only consults position to distinguish fields
// that share a type (e.g. issuer and subject are both a Name SEQUENCE).
package x509view

import (
	"errors"
	"fmt"
	"time"

	"github.com/letsencrypt-icao/vdsnc/asn1der"
)

// ErrMalformed is wrapped into a more specific error by every accessor
// that cannot locate its field; the detail names which field.
var ErrMalformed = errors.New("x509view: malformed certificate")

// Certificate is a parsed view over one DER-encoded X.509 certificate.
type Certificate struct {
	arena *asn1der.Arena
	root  asn1der.Ref // Certificate SEQUENCE
	tbs   asn1der.Ref // tbsCertificate SEQUENCE

	serialNumber []byte
	issuer       asn1der.Ref
	validity     asn1der.Ref
	subject      asn1der.Ref
	spki         asn1der.Ref
	extensions   asn1der.Ref
	hasExtns     bool
}

// Parse decodes der as a Certificate ::= SEQUENCE { tbsCertificate,
// signatureAlgorithm, signatureValue } and locates the fields of
// tbsCertificate by type, tolerating the presence or absence of every
// OPTIONAL field defined ahead of serialNumber.
func Parse(der []byte) (*Certificate, error) {
	_, root, err := asn1der.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("x509view: %w", err)
	}
	if root.Node().Tag != asn1der.TagSequence || root.NumChildren() != 3 {
		return nil, fmt.Errorf("%w: root is not a 3-element Certificate SEQUENCE", ErrMalformed)
	}
	tbs, ok := root.Child(0)
	if !ok || tbs.Node().Tag != asn1der.TagSequence {
		return nil, fmt.Errorf("%w: missing tbsCertificate", ErrMalformed)
	}

	c := &Certificate{arena: root.Arena, root: root, tbs: tbs}
	if err := c.walkTBS(); err != nil {
		return nil, err
	}
	return c, nil
}

// walkTBS locates each field of tbsCertificate by ASN.1 type rather than
// fixed child index: the leading `version [0] EXPLICIT` field is OPTIONAL
// and, when absent, would otherwise shift every fixed index that follows
// it by one -- the bug this package is built to avoid.
func (c *Certificate) walkTBS() error {
	children := c.tbs.Node().Children
	i := 0
	next := func() (asn1der.Ref, bool) {
		if i >= len(children) {
			return asn1der.Ref{}, false
		}
		r := asn1der.Ref{Arena: c.arena, Index: children[i]}
		i++
		return r, true
	}
	peek := func() (asn1der.Ref, bool) {
		if i >= len(children) {
			return asn1der.Ref{}, false
		}
		return asn1der.Ref{Arena: c.arena, Index: children[i]}, true
	}

	if r, ok := peek(); ok && r.Node().Class == asn1der.ClassContextSpecific && r.Node().Tag == 0 {
		i++ // skip version
	}

	serial, ok := next()
	if !ok || serial.Node().Tag != asn1der.TagInteger {
		return fmt.Errorf("%w: missing serialNumber", ErrMalformed)
	}
	c.serialNumber, _ = serial.AsBytes()

	if _, ok := next(); !ok { // signature AlgorithmIdentifier, unused here
		return fmt.Errorf("%w: missing tbsCertificate signature field", ErrMalformed)
	}

	issuer, ok := next()
	if !ok || issuer.Node().Tag != asn1der.TagSequence {
		return fmt.Errorf("%w: missing issuer", ErrMalformed)
	}
	c.issuer = issuer

	validity, ok := next()
	if !ok || validity.Node().Tag != asn1der.TagSequence {
		return fmt.Errorf("%w: missing validity", ErrMalformed)
	}
	c.validity = validity

	subject, ok := next()
	if !ok || subject.Node().Tag != asn1der.TagSequence {
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	c.subject = subject

	spki, ok := next()
	if !ok || spki.Node().Tag != asn1der.TagSequence {
		return fmt.Errorf("%w: missing subjectPublicKeyInfo", ErrMalformed)
	}
	c.spki = spki

	// Remaining fields are all OPTIONAL and context-tagged: issuerUniqueID
	// [1], subjectUniqueID [2], extensions [3]. Skip unique IDs, keep
	// extensions if present, in any order the encoder used.
	for {
		r, ok := peek()
		if !ok || r.Node().Class != asn1der.ClassContextSpecific {
			break
		}
		i++
		if r.Node().Tag == 3 && r.NumChildren() == 1 {
			extns, ok := r.Child(0)
			if ok && extns.Node().Tag == asn1der.TagSequence {
				c.extensions = extns
				c.hasExtns = true
			}
		}
	}
	return nil
}

// SerialNumber returns the raw (leading-zero-stripped) serial number bytes.
func (c *Certificate) SerialNumber() []byte { return c.serialNumber }

// NotBefore returns the validity period's start.
func (c *Certificate) NotBefore() (time.Time, error) { return c.validityTime(0) }

// NotAfter returns the validity period's end.
func (c *Certificate) NotAfter() (time.Time, error) { return c.validityTime(1) }

func (c *Certificate) validityTime(idx int) (time.Time, error) {
	child, ok := c.validity.Child(idx)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing validity field %d", ErrMalformed, idx)
	}
	t, ok := child.Node().Value.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: validity field %d is not a recognized time", ErrMalformed, idx)
	}
	return t, nil
}

// IssuerDN returns the issuer distinguished name, RFC-1779 formatted.
func (c *Certificate) IssuerDN() (string, error) { return formatName(c.issuer) }

// SubjectDN returns the subject distinguished name, RFC-1779 formatted.
func (c *Certificate) SubjectDN() (string, error) { return formatName(c.subject) }

// IssuerRaw returns the exact DER bytes of the issuer Name SEQUENCE,
// header included, for byte-exact issuer/subject linkage checks.
func (c *Certificate) IssuerRaw() []byte { return c.issuer.Node().Raw }

// SubjectRaw returns the exact DER bytes of the subject Name SEQUENCE,
// header included, for byte-exact issuer/subject linkage checks.
func (c *Certificate) SubjectRaw() []byte { return c.subject.Node().Raw }

// IssuerAttribute returns the first attribute value in the issuer Name
// whose AttributeType OID equals oid -- used to read the BSC issuer's
// country code (OID 2.5.4.6) for CSCA candidate selection.
func (c *Certificate) IssuerAttribute(oid string) (string, bool) {
	return attributeValue(c.issuer, oid)
}

// SubjectAttribute returns the first attribute value in the subject Name
// whose AttributeType OID equals oid.
func (c *Certificate) SubjectAttribute(oid string) (string, bool) {
	return attributeValue(c.subject, oid)
}

// SignatureAlgorithmOID returns the dotted OID of the outer
// Certificate.signatureAlgorithm field (not tbsCertificate's, which must
// match it but is not otherwise consulted).
func (c *Certificate) SignatureAlgorithmOID() (string, error) {
	algID, ok := c.root.Child(1)
	if !ok || algID.Node().Tag != asn1der.TagSequence {
		return "", fmt.Errorf("%w: missing signatureAlgorithm", ErrMalformed)
	}
	oidNode, ok := algID.Child(0)
	if !ok {
		return "", fmt.Errorf("%w: signatureAlgorithm has no algorithm OID", ErrMalformed)
	}
	oid, ok := oidNode.AsString()
	if !ok {
		return "", fmt.Errorf("%w: signatureAlgorithm OID is not decodable", ErrMalformed)
	}
	return oid, nil
}

// Signature returns the signatureValue BIT STRING body, unused-bits byte
// already dropped by the decoder.
func (c *Certificate) Signature() ([]byte, error) {
	sig, ok := c.root.Child(2)
	if !ok || sig.Node().Tag != asn1der.TagBitString {
		return nil, fmt.Errorf("%w: missing signatureValue", ErrMalformed)
	}
	b, ok := sig.AsBytes()
	if !ok {
		return nil, fmt.Errorf("%w: signatureValue not decoded", ErrMalformed)
	}
	return b, nil
}

// TBSRaw returns the exact DER bytes of tbsCertificate, header included,
// for use as the message a certificate signature is verified over.
func (c *Certificate) TBSRaw() []byte {
	return c.tbs.Node().Raw
}

// SubjectPublicKeyInfo returns the raw DER bytes of the SPKI SEQUENCE
// (tag and length included) and the public-key algorithm's dotted OID.
func (c *Certificate) SubjectPublicKeyInfo() (raw []byte, algOID string, err error) {
	algID, ok := c.spki.Child(0)
	if !ok || algID.Node().Tag != asn1der.TagSequence {
		return nil, "", fmt.Errorf("%w: missing SPKI algorithm", ErrMalformed)
	}
	oidNode, ok := algID.Child(0)
	if !ok {
		return nil, "", fmt.Errorf("%w: SPKI algorithm has no OID", ErrMalformed)
	}
	oid, ok := oidNode.AsString()
	if !ok {
		return nil, "", fmt.Errorf("%w: SPKI algorithm OID not decodable", ErrMalformed)
	}
	return c.spki.Node().Raw, oid, nil
}

// Extension returns the raw content octets of the extnValue OCTET STRING
// for the extension identified by oid, or ok=false if no such extension
// is present.
func (c *Certificate) Extension(oid string) (value []byte, critical bool, ok bool) {
	ext, ok := c.findExtension(oid)
	if !ok {
		return nil, false, false
	}
	extnValue, ok := extensionValueNode(ext)
	if !ok {
		return nil, false, false
	}
	return extnValue.Node().Body, extensionCritical(ext), true
}

// SubjectKeyIdentifier returns the subjectKeyIdentifier extension's inner
// OCTET STRING bytes (OID 2.5.29.14).
func (c *Certificate) SubjectKeyIdentifier() ([]byte, bool) {
	ext, ok := c.findExtension(oidSubjectKeyIdentifier)
	if !ok {
		return nil, false
	}
	extnValue, ok := extensionValueNode(ext)
	if !ok {
		return nil, false
	}
	// extnValue is OCTET STRING wrapping another OCTET STRING
	// (SubjectKeyIdentifier ::= KeyIdentifier ::= OCTET STRING); the
	// decoder reparses that inner OCTET STRING as a child automatically.
	inner, ok := extnValue.Child(0)
	if !ok {
		return extnValue.Node().Body, true
	}
	return inner.Node().Body, true
}

// AuthorityKeyIdentifier returns the authorityKeyIdentifier extension's
// keyIdentifier field (the [0] IMPLICIT context tag), OID 2.5.29.35.
func (c *Certificate) AuthorityKeyIdentifier() ([]byte, bool) {
	ext, ok := c.findExtension(oidAuthorityKeyIdentifier)
	if !ok {
		return nil, false
	}
	extnValue, ok := extensionValueNode(ext)
	if !ok {
		return nil, false
	}
	seq, ok := extnValue.Child(0) // AuthorityKeyIdentifier SEQUENCE
	if !ok {
		return nil, false
	}
	for j := 0; j < seq.NumChildren(); j++ {
		field, _ := seq.Child(j)
		if field.Node().Class == asn1der.ClassContextSpecific && field.Node().Tag == 0 {
			return field.Node().Body, true
		}
	}
	return nil, false
}

const (
	oidSubjectKeyIdentifier   = "2.5.29.14"
	oidAuthorityKeyIdentifier = "2.5.29.35"
)

// findExtension returns the Extension SEQUENCE { extnID, [critical], extnValue }
// whose extnID equals oid.
func (c *Certificate) findExtension(oid string) (asn1der.Ref, bool) {
	if !c.hasExtns {
		return asn1der.Ref{}, false
	}
	for j := 0; j < c.extensions.NumChildren(); j++ {
		ext, _ := c.extensions.Child(j)
		idNode, ok := ext.Child(0)
		if !ok {
			continue
		}
		id, ok := idNode.AsString()
		if ok && id == oid {
			return ext, true
		}
	}
	return asn1der.Ref{}, false
}

// extensionValueNode returns the extnValue OCTET STRING of an Extension
// SEQUENCE, whether or not a critical BOOLEAN is present before it.
func extensionValueNode(ext asn1der.Ref) (asn1der.Ref, bool) {
	for j := 1; j < ext.NumChildren(); j++ {
		field, _ := ext.Child(j)
		if field.Node().Tag == asn1der.TagOctetString {
			return field, true
		}
	}
	return asn1der.Ref{}, false
}

func extensionCritical(ext asn1der.Ref) bool {
	for j := 1; j < ext.NumChildren(); j++ {
		field, _ := ext.Child(j)
		if field.Node().Tag == asn1der.TagBoolean {
			b, _ := field.Node().Value.(bool)
			return b
		}
	}
	return false
}
