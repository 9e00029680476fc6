// Package trust holds the ordered set of trusted CSCA root certificates
// and their CRLs, and arms the periodic background refresh cycle
// described in spec.md §5: a single logical ticker that, on each tick,
// refreshes every member's CRL concurrently and calls one observer
// exactly once when the whole batch completes.
package trust

import (
	"fmt"

	"github.com/letsencrypt-icao/vdsnc/crl"
	"github.com/letsencrypt-icao/vdsnc/vdscrypto"
	"github.com/letsencrypt-icao/vdsnc/x509view"
)

// CSCACertificate is one trust anchor: its DER bytes, the SHA-256 digest
// the host expects those bytes to hash to, and its associated CRL. The
// host creates these at startup; nothing in this system mutates DER or
// SHA256Hex afterward.
type CSCACertificate struct {
	DER       []byte
	SHA256Hex string
	CRL       *crl.CRL

	view *x509view.Certificate
}

// NewCSCACertificate parses der once and retains the parsed view for
// repeated use across verifications, since x509view.Parse walks the
// whole tbsCertificate on every call.
func NewCSCACertificate(der []byte, sha256Hex string, crlObj *crl.CRL) (*CSCACertificate, error) {
	view, err := x509view.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("trust: parsing CSCA certificate: %w", err)
	}
	return &CSCACertificate{DER: der, SHA256Hex: sha256Hex, CRL: crlObj, view: view}, nil
}

// View returns the parsed x509view.Certificate for this CSCA.
func (c *CSCACertificate) View() *x509view.Certificate { return c.view }

// VerifyIntegrity reports whether SHA-256(DER) matches SHA256Hex, the
// check that must pass before this CSCA is used for anything else.
func (c *CSCACertificate) VerifyIntegrity() bool {
	return vdscrypto.SHA256Hex(c.DER) == c.SHA256Hex
}
