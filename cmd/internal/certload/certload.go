// Package certload loads a CSCA or BSC certificate file for the
// cmd/vdsverify and cmd/vdstrustd hosts, tolerating both PEM and bare
// DER the way the teacher's cmd/boulder-wfe2 loadCertificateFile
// tolerates a PEM chain file: decode PEM if the contents look like PEM,
// otherwise treat the file as already being DER.
package certload

import (
	"encoding/pem"
	"fmt"
	"os"
)

// CertificateDER reads path and returns the certificate's raw DER bytes,
// decoding a PEM "CERTIFICATE" block if present.
func CertificateDER(path string) ([]byte, error) {
	return decodeOptionalPEM(path, "CERTIFICATE")
}

// CRLDER reads path and returns a CRL's raw DER bytes, decoding a PEM
// "X509 CRL" block if present.
func CRLDER(path string) ([]byte, error) {
	return decodeOptionalPEM(path, "X509 CRL")
}

func decodeOptionalPEM(path, wantType string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certload: reading %q: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return raw, nil
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("certload: %q is PEM but block type is %q, not %q", path, block.Type, wantType)
	}
	return block.Bytes, nil
}
