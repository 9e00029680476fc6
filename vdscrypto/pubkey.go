package vdscrypto

import "crypto/x509"

// PublicKeyFromSPKI parses the raw SubjectPublicKeyInfo DER x509view
// extracts from a certificate into a usable crypto.PublicKey. This is the
// one place this system hands DER bytes to the standard library's X.509
// support rather than asn1der: turning an EC point or RSA modulus/exponent
// pair into *ecdsa.PublicKey / *rsa.PublicKey is key-material parsing, not
// certificate-structure verification, and crypto/x509's SPKI parsing
// carries no certificate-validity policy that would need bypassing.
func PublicKeyFromSPKI(der []byte) (interface{}, error) {
	return x509.ParsePKIXPublicKey(der)
}
