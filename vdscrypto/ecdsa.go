package vdscrypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

var ErrSignatureInvalid = errors.New("vdscrypto: signature verification failed")

// CurveForBits returns the NIST curve whose field size matches bits
// (256, 384, or 521), the three curves VDS-NC and its CSCA/BSC
// certificates are defined over.
func CurveForBits(bits int) (elliptic.Curve, error) {
	switch bits {
	case 256:
		return elliptic.P256(), nil
	case 384:
		return elliptic.P384(), nil
	case 521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("vdscrypto: unsupported curve bit size %d", bits)
	}
}

// curveByteLen returns the per-coordinate byte length used to pad r and s
// in a raw (r‖s) signature for the given curve.
func curveByteLen(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

// VerifyECDSARaw verifies sig, encoded as the concatenation of r and s
// each padded to the curve's coordinate byte length, over message's hash
// under hashAlg. This is the encoding VDS-NC uses for sig.sigvl.
func VerifyECDSARaw(pub *ecdsa.PublicKey, hashAlg crypto.Hash, message, sig []byte) error {
	n := curveByteLen(pub.Curve)
	if len(sig) != 2*n {
		return fmt.Errorf("vdscrypto: raw ECDSA signature is %d bytes, want %d", len(sig), 2*n)
	}
	r := new(big.Int).SetBytes(sig[:n])
	s := new(big.Int).SetBytes(sig[n:])
	return verify(pub, hashAlg, message, r, s)
}

// derECDSASignature mirrors the ASN.1 ECDSA-Sig-Value structure
// (RFC 3279 §2.2.3): SEQUENCE { r INTEGER, s INTEGER }. Unmarshalling
// this one fixed, two-integer structure with encoding/asn1 is the single
// place this package leans on the standard library's ASN.1 support rather
// than the hand-rolled decoder, since it's a closed, non-certificate,
// non-BER shape with no indefinite-length or type-walking requirement.
type derECDSASignature struct {
	R, S *big.Int
}

// VerifyECDSADER verifies sig, ASN.1 DER encoded as ECDSA-Sig-Value, over
// message's hash under hashAlg. This is the encoding X.509 certificate
// and CRL signatures use.
func VerifyECDSADER(pub *ecdsa.PublicKey, hashAlg crypto.Hash, message, sigDER []byte) error {
	var sig derECDSASignature
	rest, err := asn1.Unmarshal(sigDER, &sig)
	if err != nil {
		return fmt.Errorf("vdscrypto: invalid ECDSA-Sig-Value: %w", err)
	}
	if len(rest) != 0 {
		return errors.New("vdscrypto: trailing data after ECDSA-Sig-Value")
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return errors.New("vdscrypto: ECDSA-Sig-Value has a non-positive component")
	}
	return verify(pub, hashAlg, message, sig.R, sig.S)
}

func verify(pub *ecdsa.PublicKey, hashAlg crypto.Hash, message []byte, r, s *big.Int) error {
	digest, err := Sum(hashAlg, message)
	if err != nil {
		return err
	}
	if !ecdsa.Verify(pub, digest, r, s) {
		return ErrSignatureInvalid
	}
	return nil
}
