// Package vdscrypto provides the hash and signature-verification
// primitives the verifier needs: SHA-256/384/512 digests, ECDSA
// verification over both the raw (r‖s) encoding VDS signatures use and
// the ASN.1 DER ECDSA-Sig-Value encoding X.509 signatures use, and
// RSA-PKCS1v15 verification for RSA-signed CSCAs.
package vdscrypto

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// NewHash returns a streaming hash.Hash for the given algorithm.
func NewHash(alg crypto.Hash) (hash.Hash, error) {
	switch alg {
	case crypto.SHA256:
		return sha256.New(), nil
	case crypto.SHA384:
		return sha512.New384(), nil
	case crypto.SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("vdscrypto: unsupported hash algorithm %v", alg)
	}
}

// Sum hashes data with alg and returns the raw digest.
func Sum(alg crypto.Hash, data []byte) ([]byte, error) {
	h, err := NewHash(alg)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// SumHex hashes data with alg and returns the lower-case hex digest.
func SumHex(alg crypto.Hash, data []byte) (string, error) {
	sum, err := Sum(alg, data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// SHA256Hex is the common case: used for the CSCA integrity check, which
// compares SHA-256(der) against a stored hex digest.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
