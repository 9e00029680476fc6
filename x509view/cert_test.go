package x509view

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func mustCSCACert(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(99881),
		Subject: pkix.Name{
			CommonName:   "Test CSCA",
			Country:      []string{"DE"},
			Organization: []string{"Bundesdruckerei, Inc."},
		},
		NotBefore:             time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2033, 6, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          []byte{0x01, 0x02, 0x03, 0x04, 0x05},
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}
	tmpl.Issuer = tmpl.Subject
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der, priv
}

func mustBSCCert(t *testing.T, issuer *x509.Certificate, issuerKey *ecdsa.PrivateKey) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject: pkix.Name{
			CommonName: "Test BSC",
			Country:    []string{"DE"},
		},
		NotBefore:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SubjectKeyId:       []byte{0xaa, 0xbb},
		AuthorityKeyId:     issuer.SubjectKeyId,
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer, &priv.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der
}

func TestParseBasicFields(t *testing.T) {
	der, _ := mustCSCACert(t)
	cert, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cert.SerialNumber()) == 0 {
		t.Errorf("expected non-empty serial number")
	}
	nb, err := cert.NotBefore()
	if err != nil {
		t.Fatalf("NotBefore: %v", err)
	}
	if nb.Year() != 2023 {
		t.Errorf("NotBefore year = %d, want 2023", nb.Year())
	}
	na, err := cert.NotAfter()
	if err != nil {
		t.Fatalf("NotAfter: %v", err)
	}
	if na.Year() != 2033 {
		t.Errorf("NotAfter year = %d, want 2033", na.Year())
	}
}

func TestIssuerSubjectDNFormatting(t *testing.T) {
	der, _ := mustCSCACert(t)
	cert, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dn, err := cert.SubjectDN()
	if err != nil {
		t.Fatalf("SubjectDN: %v", err)
	}
	if !bytes.Contains([]byte(dn), []byte("CN=Test CSCA")) {
		t.Errorf("SubjectDN = %q, want it to contain CN=Test CSCA", dn)
	}
	if !bytes.Contains([]byte(dn), []byte("C=DE")) {
		t.Errorf("SubjectDN = %q, want it to contain C=DE", dn)
	}
	if !bytes.Contains([]byte(dn), []byte(`O="Bundesdruckerei, Inc."`)) {
		t.Errorf("SubjectDN = %q, want the comma-containing O value quoted", dn)
	}
}

func TestSignatureAlgorithmAndTBSRaw(t *testing.T) {
	der, _ := mustCSCACert(t)
	cert, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	oid, err := cert.SignatureAlgorithmOID()
	if err != nil {
		t.Fatalf("SignatureAlgorithmOID: %v", err)
	}
	if oid != "1.2.840.10045.4.3.2" {
		t.Errorf("SignatureAlgorithmOID = %q, want ecdsa-with-SHA256", oid)
	}
	tbs := cert.TBSRaw()
	if len(tbs) == 0 || tbs[0] != 0x30 {
		t.Errorf("TBSRaw does not look like a DER SEQUENCE: %x", tbs[:min(4, len(tbs))])
	}
	sig, err := cert.Signature()
	if err != nil {
		t.Fatalf("Signature: %v", err)
	}
	if len(sig) == 0 {
		t.Errorf("expected non-empty signature bytes")
	}
}

func TestSubjectPublicKeyInfo(t *testing.T) {
	der, _ := mustCSCACert(t)
	cert, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	raw, oid, err := cert.SubjectPublicKeyInfo()
	if err != nil {
		t.Fatalf("SubjectPublicKeyInfo: %v", err)
	}
	if oid != "1.2.840.10045.2.1" { // ecPublicKey
		t.Errorf("SPKI algorithm OID = %q, want ecPublicKey", oid)
	}
	if len(raw) == 0 || raw[0] != 0x30 {
		t.Errorf("SPKI raw does not look like a DER SEQUENCE")
	}
}

func TestSubjectKeyIdentifierAndAuthorityKeyIdentifier(t *testing.T) {
	cscaDER, cscaKey := mustCSCACert(t)
	cscaCert, err := x509.ParseCertificate(cscaDER)
	if err != nil {
		t.Fatalf("stdlib ParseCertificate: %v", err)
	}
	bscDER := mustBSCCert(t, cscaCert, cscaKey)

	csca, err := Parse(cscaDER)
	if err != nil {
		t.Fatalf("Parse CSCA: %v", err)
	}
	ski, ok := csca.SubjectKeyIdentifier()
	if !ok {
		t.Fatalf("expected CSCA subjectKeyIdentifier")
	}
	if !bytes.Equal(ski, []byte{0x01, 0x02, 0x03, 0x04, 0x05}) {
		t.Errorf("CSCA SKI = %x, want 0102030405", ski)
	}

	bsc, err := Parse(bscDER)
	if err != nil {
		t.Fatalf("Parse BSC: %v", err)
	}
	aki, ok := bsc.AuthorityKeyIdentifier()
	if !ok {
		t.Fatalf("expected BSC authorityKeyIdentifier")
	}
	if !bytes.Equal(aki, ski) {
		t.Errorf("BSC AKI = %x, want to match CSCA SKI %x", aki, ski)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
