// Package verifier orchestrates the seven-step VDS-NC verification
// pipeline: it is "the heart" the rest of this module's packages feed.
// Modeled on the teacher's certificate-authority IssueCertificate shape
// (ca/certificate-authority.go) -- one method that walks a fixed ordered
// sequence of checks, failing fast on the first error, with one span and
// one outcome-counter increment per step -- generalized here from issuing
// a certificate to verifying one.
package verifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/letsencrypt-icao/vdsnc/berrors"
	"github.com/letsencrypt-icao/vdsnc/crl"
	"github.com/letsencrypt-icao/vdsnc/metrics"
	"github.com/letsencrypt-icao/vdsnc/trust"
	"github.com/letsencrypt-icao/vdsnc/vds"
	"github.com/letsencrypt-icao/vdsnc/vdscrypto"
	"github.com/letsencrypt-icao/vdsnc/vlog"
	"github.com/letsencrypt-icao/vdsnc/x509view"
)

const oidCountryName = "2.5.4.6"

var tracer = otel.Tracer("github.com/letsencrypt-icao/vdsnc/verifier")

// clockNow is satisfied by both jmhodges/clock.Clock and the stdlib.
type clockNow interface {
	Now() time.Time
}

// Options carries opt-in hardening behavior beyond spec.md §4.6's literal
// seven steps. Every field defaults to off, matching the reference
// pipeline exactly; a deployment that wants more can turn one on.
type Options struct {
	// CheckValidityWindow additionally rejects a CSCA or BSC whose
	// not_before/not_after window does not contain clk.Now() -- spec.md
	// §9 "Time source" notes this is parsed but never checked by the
	// reference, and suggests a hardened port may want to.
	CheckValidityWindow bool
}

// Verifier runs the pipeline in §4.6 against a TrustStore.
type Verifier struct {
	scope metrics.Scope
	log   vlog.Logger
	clk   clockNow
	opts  Options
}

// New returns a Verifier reporting outcomes to scope and clk.Now() for
// audit-log timestamps, with the reference pipeline's default options
// (no validity-window check).
func New(scope metrics.Scope, log vlog.Logger, clk clockNow) *Verifier {
	return NewWithOptions(scope, log, clk, Options{})
}

// NewWithOptions is New with explicit opt-in hardening behavior.
func NewWithOptions(scope metrics.Scope, log vlog.Logger, clk clockNow, opts Options) *Verifier {
	if scope == nil {
		scope = metrics.NewNoopScope()
	}
	return &Verifier{scope: scope, log: log, clk: clk, opts: opts}
}

// Verify runs the full seven-step pipeline against v, selecting a CSCA
// candidate from store. It returns nil on success and a *berrors.VDSError
// on any failure (a *ValidityWindowError for the opt-in validity-window
// check) -- the first, and only, error the pipeline surfaces.
func (vf *Verifier) Verify(ctx context.Context, v *vds.VDS, store *trust.TrustStore) error {
	ctx, span := tracer.Start(ctx, "verifier.Verify")
	defer span.End()

	bsc, err := x509view.Parse(v.CertDER)
	if err != nil {
		return vf.fail(span, berrors.ParseBSCCertFromVDSFailedError("%v", err))
	}

	bscCountry, ok := bsc.IssuerAttribute(oidCountryName)
	if !ok {
		return vf.fail(span, berrors.NoMatchingCSCAFoundError("BSC issuer has no country attribute"))
	}

	var candidates []*trust.CSCACertificate
	for _, candidate := range store.Members() {
		cscaCountry, ok := candidate.View().SubjectAttribute(oidCountryName)
		if ok && cscaCountry == bscCountry {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return vf.fail(span, berrors.NoMatchingCSCAFoundError("no CSCA in the store has country %q", bscCountry))
	}

	var csca *trust.CSCACertificate
	var lastErr error
	for _, candidate := range candidates {
		if err := vf.verifyAgainstCandidate(ctx, v, bsc, candidate); err != nil {
			lastErr = err
			vf.log.Warn("verify: candidate CSCA rejected: " + err.Error())
			continue
		}
		csca = candidate
		break
	}
	if csca == nil {
		// With a single matching candidate, its own failure is the
		// verification's failure. Only once more than one candidate has
		// been tried and exhausted does the specific failure get masked
		// behind NoMatchingCSCAFound, per §4.6 step 1.
		if len(candidates) == 1 {
			return vf.fail(span, lastErr)
		}
		return vf.fail(span, berrors.NoMatchingCSCAFoundError("no CSCA for country %q verified this BSC", bscCountry))
	}

	if err := vf.verifyVDSSignature(ctx, v, bsc); err != nil {
		return vf.fail(span, err)
	}

	vf.recordAudit(ctx, store, csca, bsc, "success")
	vf.scope.IncLabeled("verify_outcomes_total", 1, map[string]string{"kind": "success"})
	return nil
}

// verifyAgainstCandidate runs steps 2-6 against one CSCA candidate.
// Unlike every other step, a failure here is not fatal to the whole
// verification -- it only eliminates this candidate from step 1's loop.
func (vf *Verifier) verifyAgainstCandidate(ctx context.Context, v *vds.VDS, bsc *x509view.Certificate, csca *trust.CSCACertificate) error {
	if err := vf.stepCSCAIntegrity(ctx, csca); err != nil {
		return err
	}
	if err := vf.stepCRLSignature(ctx, csca); err != nil {
		return err
	}
	if err := vf.stepBSCNotRevoked(ctx, bsc, csca); err != nil {
		return err
	}
	if err := vf.stepAKISKILinkage(ctx, bsc, csca); err != nil {
		return err
	}
	if err := vf.stepIssuerSubjectAndSignature(ctx, bsc, csca); err != nil {
		return err
	}
	if vf.opts.CheckValidityWindow {
		if err := vf.stepValidityWindow(ctx, bsc, csca); err != nil {
			return err
		}
	}
	return nil
}

// stepValidityWindow is an opt-in hardening step not present in §4.6:
// both the CSCA and the BSC must have clk.Now() within their
// not_before/not_after window. It deliberately does not map onto any
// entry in the fixed error-kind taxonomy (§7), since it is outside the
// reference pipeline's scope; callers distinguish it from the core
// taxonomy with errors.As.
func (vf *Verifier) stepValidityWindow(ctx context.Context, bsc *x509view.Certificate, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "validity-window")
	defer span.End()

	now := time.Now()
	if vf.clk != nil {
		now = vf.clk.Now()
	}
	for name, cert := range map[string]*x509view.Certificate{"csca": csca.View(), "bsc": bsc} {
		nb, err := cert.NotBefore()
		if err != nil {
			return vf.failStep(span, &ValidityWindowError{Cert: name, Detail: err.Error()})
		}
		na, err := cert.NotAfter()
		if err != nil {
			return vf.failStep(span, &ValidityWindowError{Cert: name, Detail: err.Error()})
		}
		if now.Before(nb) || now.After(na) {
			return vf.failStep(span, &ValidityWindowError{Cert: name, Detail: "outside not_before/not_after window"})
		}
	}
	vf.succeedStep()
	return nil
}

// ValidityWindowError reports that a certificate's validity window does
// not contain the verification clock's current time. It is returned only
// when Options.CheckValidityWindow is set, and is not one of the flat
// error kinds in berrors since it is outside the reference pipeline.
type ValidityWindowError struct {
	Cert   string // "csca" or "bsc"
	Detail string
}

func (e *ValidityWindowError) Error() string {
	return "verifier: " + e.Cert + " validity window check failed: " + e.Detail
}

// stepCSCAIntegrity is step 2: SHA-256(csca.der) must equal csca.sha256.
func (vf *Verifier) stepCSCAIntegrity(ctx context.Context, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "csca-integrity")
	defer span.End()
	if !csca.VerifyIntegrity() {
		return vf.failStep(span, berrors.CSCACertHashMismatchError("SHA-256(csca.der) does not match declared digest"))
	}
	vf.succeedStep()
	return nil
}

// stepCRLSignature is step 3: the CSCA's public key must verify the
// stored CRL's signature over its own tbsCertList bytes.
func (vf *Verifier) stepCRLSignature(ctx context.Context, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "crl-signature")
	defer span.End()

	if csca.CRL == nil {
		return vf.failStep(span, berrors.LoadCRLFailedError("CSCA has no associated CRL"))
	}
	crlView, err := crl.Parse(csca.CRL.Data())
	if err != nil {
		return vf.failStep(span, berrors.LoadCRLFailedError("%v", err))
	}
	oid, err := crlView.SignatureAlgorithmOID()
	if err != nil {
		return vf.failStep(span, berrors.VerifyCRLFailedError("%v", err))
	}
	sig, err := crlView.Signature()
	if err != nil {
		return vf.failStep(span, berrors.VerifyCRLFailedError("%v", err))
	}
	if err := vf.verifySignatureWithCSCA(csca, oid, crlView.TBSRaw(), sig); err != nil {
		return vf.failStep(span, berrors.VerifyCRLFailedError("%v", err))
	}
	vf.succeedStep()
	return nil
}

// stepBSCNotRevoked is step 4: the BSC's serial number must not appear in
// the CRL's revokedCertificates.
func (vf *Verifier) stepBSCNotRevoked(ctx context.Context, bsc *x509view.Certificate, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "bsc-revocation")
	defer span.End()

	if len(bsc.SerialNumber()) == 0 {
		return vf.failStep(span, berrors.BSCCertNoSerialNumberError("BSC has no serial number"))
	}
	crlView, err := crl.Parse(csca.CRL.Data())
	if err != nil {
		return vf.failStep(span, berrors.LoadCRLFailedError("%v", err))
	}
	if crlView.IsRevoked(bsc.SerialNumber()) {
		return vf.failStep(span, berrors.BSCCertRevokedError("BSC serial number found in CRL"))
	}
	vf.succeedStep()
	return nil
}

// stepAKISKILinkage is step 5: BSC.authorityKeyIdentifier.keyIdentifier
// must byte-equal CSCA.subjectKeyIdentifier.
func (vf *Verifier) stepAKISKILinkage(ctx context.Context, bsc *x509view.Certificate, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "aki-ski-linkage")
	defer span.End()

	aki, ok := bsc.AuthorityKeyIdentifier()
	if !ok {
		return vf.failStep(span, berrors.ExtractBSCAkiFailedError("BSC has no authorityKeyIdentifier"))
	}
	ski, ok := csca.View().SubjectKeyIdentifier()
	if !ok {
		return vf.failStep(span, berrors.ExtractCSCASkiFailedError("CSCA has no subjectKeyIdentifier"))
	}
	if !bytesEqual(aki, ski) {
		return vf.failStep(span, berrors.BSCAkiMismatchCSCASkiError("BSC AKI does not match CSCA SKI"))
	}
	vf.succeedStep()
	return nil
}

// stepIssuerSubjectAndSignature is step 6: BSC.issuer must equal
// CSCA.subject byte-for-byte, and the CSCA's public key must verify the
// BSC's own signature over its tbsCertificate.
func (vf *Verifier) stepIssuerSubjectAndSignature(ctx context.Context, bsc *x509view.Certificate, csca *trust.CSCACertificate) error {
	_, span := tracer.Start(ctx, "issuer-subject-and-signature")
	defer span.End()

	if !bytesEqual(bsc.IssuerRaw(), csca.View().SubjectRaw()) {
		return vf.failStep(span, berrors.IssuerSubjectsDontMatchError("BSC issuer does not equal CSCA subject"))
	}

	oid, err := bsc.SignatureAlgorithmOID()
	if err != nil {
		return vf.failStep(span, berrors.VerifyBSCSignatureFailedError("%v", err))
	}
	sig, err := bsc.Signature()
	if err != nil {
		return vf.failStep(span, berrors.VerifyBSCSignatureFailedError("%v", err))
	}
	if err := vf.verifySignatureWithCSCA(csca, oid, bsc.TBSRaw(), sig); err != nil {
		return vf.failStep(span, berrors.VerifyBSCSignatureFailedError("%v", err))
	}
	vf.succeedStep()
	return nil
}

// verifyVDSSignature is step 7: the VDS signature must verify against the
// BSC's own public key over the canonicalised "data" field.
func (vf *Verifier) verifyVDSSignature(ctx context.Context, v *vds.VDS, bsc *x509view.Certificate) error {
	_, span := tracer.Start(ctx, "vds-signature")
	defer span.End()

	curveBits, hashAlg, ok := vdscrypto.LookupVDSSignatureAlgorithm(v.Sig.Alg)
	if !ok {
		return vf.failStep(span, berrors.BSCKeyAlgorithmNotSupportedError("unsupported sig.alg %q", v.Sig.Alg))
	}

	canonical, err := v.CanonicalData()
	if err != nil {
		return vf.failStep(span, err)
	}

	_, spkiOID, err := bsc.SubjectPublicKeyInfo()
	if err != nil {
		return vf.failStep(span, berrors.LoadBSCPublicKeyDataFailedError("%v", err))
	}
	pub, err := vf.publicKeyFromBSC(bsc)
	if err != nil {
		return vf.failStep(span, berrors.LoadBSCPublicKeyDataFailedError("%v", err))
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return vf.failStep(span, berrors.BSCKeyAlgorithmNotSupportedError("BSC public key algorithm %s is not ECDSA", spkiOID))
	}
	curve, err := vdscrypto.CurveForBits(curveBits)
	if err != nil {
		return vf.failStep(span, berrors.BSCKeyAlgorithmNotSupportedError("%v", err))
	}
	if ecdsaPub.Curve != curve {
		return vf.failStep(span, berrors.BSCKeyAlgorithmNotSupportedError("BSC public key curve does not match sig.alg %q", v.Sig.Alg))
	}

	if err := vdscrypto.VerifyECDSARaw(ecdsaPub, hashAlg, canonical, v.SignatureRS); err != nil {
		return vf.failStep(span, berrors.VerifyVDSSignatureFailedError("%v", err))
	}
	vf.succeedStep()
	return nil
}

// verifySignatureWithCSCA dispatches to ECDSA or RSA verification based on
// the signature-algorithm OID, rejecting OIDs this system does not
// support (including the ecPublicKey fallback -- see vdscrypto.algTable).
func (vf *Verifier) verifySignatureWithCSCA(csca *trust.CSCACertificate, sigAlgOID string, message, sigDER []byte) error {
	hashAlg, kind, ok := vdscrypto.LookupSignatureAlgorithm(sigAlgOID)
	if !ok {
		return berrors.BSCKeyAlgorithmNotSupportedError("unsupported signature algorithm OID %q", sigAlgOID)
	}
	pub, err := vf.publicKeyFromBSC(csca.View())
	if err != nil {
		return err
	}
	switch kind {
	case vdscrypto.SignatureECDSA:
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return berrors.BSCKeyAlgorithmNotSupportedError("signature OID selects ECDSA but CSCA key is not ECDSA")
		}
		return vdscrypto.VerifyECDSADER(ecdsaPub, hashAlg, message, sigDER)
	case vdscrypto.SignatureRSA:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return berrors.BSCKeyAlgorithmNotSupportedError("signature OID selects RSA but CSCA key is not RSA")
		}
		return vdscrypto.VerifyRSAPKCS1v15(rsaPub, hashAlg, message, sigDER)
	default:
		return berrors.BSCKeyAlgorithmNotSupportedError("unknown signature kind")
	}
}

func (vf *Verifier) publicKeyFromBSC(cert *x509view.Certificate) (interface{}, error) {
	raw, _, err := cert.SubjectPublicKeyInfo()
	if err != nil {
		return nil, err
	}
	return vdscrypto.PublicKeyFromSPKI(raw)
}

func (vf *Verifier) recordAudit(ctx context.Context, store *trust.TrustStore, csca *trust.CSCACertificate, bsc *x509view.Certificate, outcome string) {
	al := store.AuditLog()
	if al == nil {
		return
	}
	now := time.Now()
	if vf.clk != nil {
		now = vf.clk.Now()
	}
	if err := al.Record(ctx, csca.SHA256Hex, hexBytes(bsc.SerialNumber()), outcome, now); err != nil {
		vf.log.Warn("verifier: audit log record failed: " + err.Error())
	}
}

func (vf *Verifier) failStep(span trace.Span, err error) error {
	kind := outcomeLabel(err)
	span.SetAttributes(attribute.String("outcome", kind))
	vf.scope.IncLabeled("verify_step_outcomes_total", 1, map[string]string{"kind": kind})
	return err
}

func (vf *Verifier) succeedStep() {
	vf.scope.IncLabeled("verify_step_outcomes_total", 1, map[string]string{"kind": "ok"})
}

func (vf *Verifier) fail(span trace.Span, err error) error {
	kind := outcomeLabel(err)
	span.SetAttributes(attribute.String("outcome", kind))
	vf.scope.IncLabeled("verify_outcomes_total", 1, map[string]string{"kind": kind})
	return err
}

// outcomeLabel names err for metrics/trace attributes: its berrors.ErrorKind
// when it's a *berrors.VDSError, "validity_window" for the opt-in
// hardening check, "unknown" otherwise.
func outcomeLabel(err error) string {
	if kind, ok := berrors.KindOf(err); ok {
		return kind.String()
	}
	if _, ok := err.(*ValidityWindowError); ok {
		return "validity_window"
	}
	return "unknown"
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const hexDigits = "0123456789abcdef"

func hexBytes(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
