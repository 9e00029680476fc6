package vdscrypto

import "crypto"

// SignatureKind names the asymmetric algorithm family a signature
// algorithm OID selects.
type SignatureKind int

const (
	SignatureECDSA SignatureKind = iota
	SignatureRSA
)

// algEntry is one row of the signature-algorithm OID table. The
// ecPublicKey OID (1.2.840.10045.2.1) is deliberately absent: the
// reference implementation this package's table is modeled on falls back
// to treating a bare SPKI algorithm OID as "ECDSA with SHA-384", which
// silently picks a hash the signer never chose. Any OID not in this table
// is unsupported and must be rejected rather than guessed at.
var algTable = map[string]algEntry{
	"1.2.840.113549.1.1.11": {crypto.SHA256, SignatureRSA},
	"1.2.840.10045.4.3.2":   {crypto.SHA256, SignatureECDSA},
	"1.2.840.10045.4.3.3":   {crypto.SHA384, SignatureECDSA},
	"1.2.840.10045.4.3.4":   {crypto.SHA512, SignatureECDSA},
}

type algEntry struct {
	hash crypto.Hash
	kind SignatureKind
}

// LookupSignatureAlgorithm returns the hash and signature kind a
// signature-algorithm OID selects, or ok=false if the OID is not one this
// package supports.
func LookupSignatureAlgorithm(oid string) (hashAlg crypto.Hash, kind SignatureKind, ok bool) {
	e, ok := algTable[oid]
	if !ok {
		return 0, 0, false
	}
	return e.hash, e.kind, true
}

// sigAlgTable maps a VDS-NC sig.alg value to the curve and hash used
// for its raw (r‖s) ECDSA signature.
var sigAlgTable = map[string]struct {
	curveBits int
	hash      crypto.Hash
}{
	"ES256": {256, crypto.SHA256},
	"ES384": {384, crypto.SHA384},
	"ES512": {521, crypto.SHA512},
}

// LookupVDSSignatureAlgorithm returns the curve's field size in bits and
// the hash algorithm a VDS envelope's sig.alg selects.
func LookupVDSSignatureAlgorithm(alg string) (curveBits int, hashAlg crypto.Hash, ok bool) {
	e, ok := sigAlgTable[alg]
	if !ok {
		return 0, 0, false
	}
	return e.curveBits, e.hash, true
}
