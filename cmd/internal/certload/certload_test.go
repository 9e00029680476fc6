package certload

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, contents, 0600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestCertificateDERAcceptsBareDER(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	path := writeTemp(t, "cert.der", der)

	got, err := CertificateDER(path)
	if err != nil {
		t.Fatalf("CertificateDER: %v", err)
	}
	if string(got) != string(der) {
		t.Errorf("got %x, want %x", got, der)
	}
}

func TestCertificateDERDecodesPEM(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	path := writeTemp(t, "cert.pem", block)

	got, err := CertificateDER(path)
	if err != nil {
		t.Fatalf("CertificateDER: %v", err)
	}
	if string(got) != string(der) {
		t.Errorf("got %x, want %x", got, der)
	}
}

func TestCertificateDERRejectsWrongPEMType(t *testing.T) {
	block := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: []byte{0x30, 0x00}})
	path := writeTemp(t, "cert.pem", block)

	if _, err := CertificateDER(path); err == nil {
		t.Fatal("expected error for mismatched PEM block type, got nil")
	}
}

func TestCRLDERDecodesPEM(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x02}
	block := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: der})
	path := writeTemp(t, "crl.pem", block)

	got, err := CRLDER(path)
	if err != nil {
		t.Fatalf("CRLDER: %v", err)
	}
	if string(got) != string(der) {
		t.Errorf("got %x, want %x", got, der)
	}
}

func TestCRLDERRejectsWrongPEMType(t *testing.T) {
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x30, 0x00}})
	path := writeTemp(t, "crl.pem", block)

	if _, err := CRLDER(path); err == nil {
		t.Fatal("expected error for mismatched PEM block type, got nil")
	}
}

func TestCertificateDERMissingFile(t *testing.T) {
	if _, err := CertificateDER(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
