package verifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/letsencrypt-icao/vdsnc/berrors"
	"github.com/letsencrypt-icao/vdsnc/crl"
	"github.com/letsencrypt-icao/vdsnc/metrics"
	"github.com/letsencrypt-icao/vdsnc/trust"
	"github.com/letsencrypt-icao/vdsnc/vds"
	"github.com/letsencrypt-icao/vdsnc/vlog"
)

func newStaticCRLWithData(der []byte) *crl.CRL {
	return crl.NewStatic(der)
}

// fixture builds a full CSCA -> BSC -> CRL -> VDS chain using stdlib
// crypto, mirroring an AUS-style bundle: a self-signed ECDSA P-256 CSCA,
// a BSC it issues, a CRL it signs (listing the BSC when revoke is set),
// and a VDS envelope the BSC
// signs over a canonical "data" payload.
type fixture struct {
	cscaDER   []byte
	cscaKey   *ecdsa.PrivateKey
	cscaCert  *x509.Certificate
	bscDER    []byte
	bscKey    *ecdsa.PrivateKey
	crlDER  []byte
	vdsJSON []byte
}

func buildFixture(t *testing.T, revoke bool) *fixture {
	t.Helper()

	cscaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey CSCA: %v", err)
	}
	cscaTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "Test CSCA",
			Country:    []string{"UTO"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          []byte{0x10, 0x20, 0x30, 0x40},
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}
	cscaTmpl.Issuer = cscaTmpl.Subject
	cscaDER, err := x509.CreateCertificate(rand.Reader, cscaTmpl, cscaTmpl, &cscaKey.PublicKey, cscaKey)
	if err != nil {
		t.Fatalf("CreateCertificate CSCA: %v", err)
	}
	cscaCert, err := x509.ParseCertificate(cscaDER)
	if err != nil {
		t.Fatalf("ParseCertificate CSCA: %v", err)
	}

	bscKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey BSC: %v", err)
	}
	bscSerial := big.NewInt(77)
	bscTmpl := &x509.Certificate{
		SerialNumber:       bscSerial,
		Subject:            pkix.Name{CommonName: "Test BSC", Country: []string{"UTO"}},
		NotBefore:          time.Now().Add(-time.Hour),
		NotAfter:           time.Now().Add(24 * time.Hour),
		SubjectKeyId:       []byte{0xaa, 0xbb, 0xcc},
		AuthorityKeyId:     cscaTmpl.SubjectKeyId,
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}
	bscDER, err := x509.CreateCertificate(rand.Reader, bscTmpl, cscaCert, &bscKey.PublicKey, cscaKey)
	if err != nil {
		t.Fatalf("CreateCertificate BSC: %v", err)
	}

	var revoked []pkix.RevokedCertificate
	if revoke {
		revoked = append(revoked, pkix.RevokedCertificate{SerialNumber: bscSerial, RevocationTime: time.Now()})
	}
	crlDER, err := cscaCert.CreateCRL(rand.Reader, cscaKey, revoked, time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateCRL: %v", err)
	}

	vdsJSON := buildVDSJSON(t, bscKey, bscDER)

	return &fixture{
		cscaDER:  cscaDER,
		cscaKey:  cscaKey,
		cscaCert: cscaCert,
		bscDER:   bscDER,
		bscKey:   bscKey,
		crlDER:   crlDER,
		vdsJSON:  vdsJSON,
	}
}

// buildVDSJSON hand-assembles an envelope whose "data" field is already
// byte-stable (sorted keys, compact separators) so that canonicalisation
// is a pure identity transform and the raw text can be signed directly.
func buildVDSJSON(t *testing.T, bscKey *ecdsa.PrivateKey, bscDER []byte) []byte {
	t.Helper()

	dataJSON := `{"hdr":{"is":"UTO","t":"icao.test","v":1},"msg":{"uvci":"ABC123"}}`

	digest := sha256.Sum256([]byte(dataJSON))
	r, s, err := ecdsa.Sign(rand.Reader, bscKey, digest[:])
	if err != nil {
		t.Fatalf("ecdsa.Sign: %v", err)
	}
	sigRS := make([]byte, 64)
	r.FillBytes(sigRS[:32])
	s.FillBytes(sigRS[32:])

	env := map[string]json.RawMessage{
		"data": json.RawMessage(dataJSON),
		"sig": mustMarshal(t, map[string]string{
			"alg":   "ES256",
			"cer":   base64.RawURLEncoding.EncodeToString(bscDER),
			"sigvl": base64.RawURLEncoding.EncodeToString(sigRS),
		}),
	}
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("json.Marshal envelope: %v", err)
	}
	return out
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return b
}

func newTestStore(t *testing.T, f *fixture) *trust.TrustStore {
	t.Helper()
	fc := clock.NewFake()
	sum := sha256.Sum256(f.cscaDER)
	hexSum := fmt.Sprintf("%x", sum)
	csca, err := trust.NewCSCACertificate(f.cscaDER, hexSum, newStaticCRLWithData(f.crlDER))
	if err != nil {
		t.Fatalf("NewCSCACertificate: %v", err)
	}
	store := trust.New(trust.Config{}, fc, vlog.Default())
	store.Add(csca)
	return store
}

func TestVerifyFullChainSucceeds(t *testing.T) {
	f := buildFixture(t, false)
	store := newTestStore(t, f)
	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	vf := New(metrics.NewNoopScope(), vlog.Default(), clock.NewFake())
	if err := vf.Verify(context.Background(), v, store); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsRevokedBSC(t *testing.T) {
	f := buildFixture(t, true)
	store := newTestStore(t, f)
	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	vf := New(metrics.NewNoopScope(), vlog.Default(), clock.NewFake())
	err = vf.Verify(context.Background(), v, store)
	if !berrors.Is(err, berrors.BSCCertRevoked) {
		t.Errorf("expected BSCCertRevoked, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	f := buildFixture(t, false)
	store := newTestStore(t, f)
	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}
	v.SignatureRS[0] ^= 0xff

	vf := New(metrics.NewNoopScope(), vlog.Default(), clock.NewFake())
	err = vf.Verify(context.Background(), v, store)
	if !berrors.Is(err, berrors.VerifyVDSSignatureFailed) {
		t.Errorf("expected VerifyVDSSignatureFailed, got %v", err)
	}
}

func TestVerifyRejectsCSCAIntegrityMismatch(t *testing.T) {
	f := buildFixture(t, false)
	fc := clock.NewFake()
	csca, err := trust.NewCSCACertificate(f.cscaDER, "0000000000000000000000000000000000000000000000000000000000000000", newStaticCRLWithData(f.crlDER))
	if err != nil {
		t.Fatalf("NewCSCACertificate: %v", err)
	}
	store := trust.New(trust.Config{}, fc, vlog.Default())
	store.Add(csca)

	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	vf := New(metrics.NewNoopScope(), vlog.Default(), fc)
	err = vf.Verify(context.Background(), v, store)
	if !berrors.Is(err, berrors.CSCACertHashMismatch) {
		t.Errorf("expected CSCACertHashMismatch, got %v", err)
	}
}

// TestVerifyMasksFailureAcrossMultipleCandidates exercises §4.6 step 1's
// masking rule: when more than one CSCA shares the BSC's issuer country
// and every one of them fails, the specific failure is not surfaced --
// only once a single remaining candidate fails does its own error kind
// propagate (covered by TestVerifyRejectsCSCAIntegrityMismatch).
func TestVerifyMasksFailureAcrossMultipleCandidates(t *testing.T) {
	f := buildFixture(t, false)
	fc := clock.NewFake()

	badCSCA, err := trust.NewCSCACertificate(f.cscaDER, "0000000000000000000000000000000000000000000000000000000000000000", newStaticCRLWithData(f.crlDER))
	if err != nil {
		t.Fatalf("NewCSCACertificate: %v", err)
	}

	unrelatedKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	unrelatedTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Unrelated CSCA", Country: []string{"UTO"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          []byte{0x99},
	}
	unrelatedTmpl.Issuer = unrelatedTmpl.Subject
	unrelatedDER, err := x509.CreateCertificate(rand.Reader, unrelatedTmpl, unrelatedTmpl, &unrelatedKey.PublicKey, unrelatedKey)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	sum := sha256.Sum256(unrelatedDER)
	unrelatedCSCA, err := trust.NewCSCACertificate(unrelatedDER, fmt.Sprintf("%x", sum), newStaticCRLWithData(f.crlDER))
	if err != nil {
		t.Fatalf("NewCSCACertificate: %v", err)
	}

	store := trust.New(trust.Config{}, fc, vlog.Default())
	store.Add(badCSCA)
	store.Add(unrelatedCSCA)

	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	vf := New(metrics.NewNoopScope(), vlog.Default(), fc)
	err = vf.Verify(context.Background(), v, store)
	if !berrors.Is(err, berrors.NoMatchingCSCAFound) {
		t.Errorf("expected NoMatchingCSCAFound once every candidate has failed, got %v", err)
	}
}

func TestVerifyWithValidityWindowRejectsExpiredBSCOptIn(t *testing.T) {
	f := buildFixture(t, false)
	store := newTestStore(t, f)
	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	fc := clock.NewFake()
	fc.Add(48 * time.Hour) // past the fixture's 24h NotAfter

	vf := NewWithOptions(metrics.NewNoopScope(), vlog.Default(), fc, Options{CheckValidityWindow: true})
	err = vf.Verify(context.Background(), v, store)
	var vwErr *ValidityWindowError
	if !errors.As(err, &vwErr) {
		t.Fatalf("expected *ValidityWindowError, got %v (%T)", err, err)
	}
}

func TestVerifyWithoutValidityWindowIgnoresExpiry(t *testing.T) {
	f := buildFixture(t, false)
	store := newTestStore(t, f)
	v, err := vds.Decode(f.vdsJSON)
	if err != nil {
		t.Fatalf("vds.Decode: %v", err)
	}

	fc := clock.NewFake()
	fc.Add(48 * time.Hour)

	vf := New(metrics.NewNoopScope(), vlog.Default(), fc)
	if err := vf.Verify(context.Background(), v, store); err != nil {
		t.Fatalf("expected Verify to ignore expiry by default, got %v", err)
	}
}
