package berrors

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := CSCACertHashMismatchError("sha256 mismatch for %s", "aus-csca-01")
	if !Is(err, CSCACertHashMismatch) {
		t.Errorf("Is(err, CSCACertHashMismatch) = false, want true")
	}
	if Is(err, VerifyCRLFailed) {
		t.Errorf("Is(err, VerifyCRLFailed) = true, want false")
	}
}

func TestIsRejectsForeignErrors(t *testing.T) {
	if Is(errors.New("boom"), CSCACertHashMismatch) {
		t.Errorf("Is(plain error, ...) = true, want false")
	}
}

func TestKindOf(t *testing.T) {
	err := BSCCertRevokedError("serial %x found in CRL", []byte{0x01, 0x02})
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("KindOf returned ok=false for a *VDSError")
	}
	if kind != BSCCertRevoked {
		t.Errorf("KindOf() = %v, want %v", kind, BSCCertRevoked)
	}
	if kind != VerifyBSCCertNotInCRLFailed {
		t.Errorf("BSCCertRevoked and its alias should be equal")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("network unreachable")
	err := Wrap(LoadCRLFailed, cause, "fetching %s", "https://example.test/crl")
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true")
	}
}

func TestErrorString(t *testing.T) {
	err := &VDSError{Kind: NoMatchingCSCAFound}
	if err.Error() != "NoMatchingCSCAFound" {
		t.Errorf("Error() = %q, want bare kind name when Detail is empty", err.Error())
	}
}
