// vdslint is an operator-side diagnostic tool: given a CSCA or BSC
// certificate file, it parses the certificate with a second, more
// permissive decoder (zmap/zcrypto's x509, the same parser zlint
// expects), runs the ICAO-relevant subset of zlint's lint registry
// against it, and cross-checks the result against this module's own
// hand-rolled x509view decoder, flagging any disagreement in
// subjectKeyIdentifier, authorityKeyIdentifier, or issuer/subject.
//
// It never runs on the verification hot path -- spec.md's Non-goals
// exclude general X.509 path validation -- it exists purely to help an
// operator understand why a CSCA or BSC that zlint considers fine still
// fails the seven-step pipeline, grounded on atc0005/check-cert's
// cmd/lscert and the teacher's own badSignatureAlgorithms rejection list
// in ca/certificate-authority.go.
package main

import (
	"flag"
	"fmt"
	"os"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	zx509 "github.com/zmap/zcrypto/x509"
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"

	"github.com/letsencrypt-icao/vdsnc/cmd/internal/certload"
	"github.com/letsencrypt-icao/vdsnc/x509view"
)

// icaoLintSources restricts the zlint run to the families relevant to a
// VDS-NC CSCA/BSC chain -- RFC 5280 profile hygiene -- rather than
// the full web-PKI-oriented lint set, which includes lints (e.g. CA/B
// Forum EV fields) with no bearing on a closed, bilaterally-exchanged
// trust anchor.
var icaoLintSources = lint.SourceList{
	lint.RFC5280,
}

func main() {
	path := flag.String("cert", "", "path to a CSCA or BSC certificate (PEM or DER)")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: vdslint -cert cert.pem")
		os.Exit(2)
	}

	der, err := certload.CertificateDER(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdslint: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0

	zcert, err := zx509.ParseCertificate(der)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdslint: zcrypto/x509 failed to parse: %v\n", err)
		exitCode = 1
	} else {
		registry, err := lint.GlobalRegistry().Filter(lint.FilterOptions{IncludeSources: icaoLintSources})
		if err != nil {
			fmt.Fprintf(os.Stderr, "vdslint: filtering lint registry: %v\n", err)
			os.Exit(1)
		}
		results := zlint.LintCertificateEx(zcert, registry)
		exitCode = printLintResults(results)
	}

	ctCert, err := ctx509.ParseCertificate(der)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdslint: certificate-transparency-go/x509 failed to parse: %v\n", err)
		exitCode = 1
	}

	view, err := x509view.Parse(der)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdslint: x509view failed to parse: %v\n", err)
		os.Exit(1)
	}

	if ctCert != nil {
		if !crossCheck(view, ctCert) {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

// printLintResults reports every lint that fired at Error or Warn level,
// and returns 1 if any Error-level lint fired.
func printLintResults(results *lint.ResultSet) int {
	exitCode := 0
	for name, result := range results.Results {
		switch result.Status {
		case lint.Error:
			fmt.Printf("ERROR %s: %s\n", name, result.Details)
			exitCode = 1
		case lint.Warn:
			fmt.Printf("WARN  %s: %s\n", name, result.Details)
		}
	}
	return exitCode
}

// crossCheck diffs x509view's decode of the certificate's
// subjectKeyIdentifier, authorityKeyIdentifier, and issuer/subject raw
// bytes against certificate-transparency-go's lenient decoder, printing
// any disagreement. A disagreement here would mean the hand-rolled
// decoder and an independently-written parser read the same bytes
// differently -- worth an operator's attention regardless of which one
// is "right".
func crossCheck(view *x509view.Certificate, ctCert *ctx509.Certificate) bool {
	ok := true

	viewSKI, hasSKI := view.SubjectKeyIdentifier()
	if hasSKI != (len(ctCert.SubjectKeyId) > 0) || !bytesEqual(viewSKI, ctCert.SubjectKeyId) {
		fmt.Printf("DISAGREE subjectKeyIdentifier: x509view=%x ct-go=%x\n", viewSKI, ctCert.SubjectKeyId)
		ok = false
	}

	viewAKI, hasAKI := view.AuthorityKeyIdentifier()
	if hasAKI != (len(ctCert.AuthorityKeyId) > 0) || !bytesEqual(viewAKI, ctCert.AuthorityKeyId) {
		fmt.Printf("DISAGREE authorityKeyIdentifier: x509view=%x ct-go=%x\n", viewAKI, ctCert.AuthorityKeyId)
		ok = false
	}

	if !bytesEqual(view.SubjectRaw(), ctCert.RawSubject) {
		fmt.Println("DISAGREE subject: raw DER bytes differ between x509view and ct-go")
		ok = false
	}
	if !bytesEqual(view.IssuerRaw(), ctCert.RawIssuer) {
		fmt.Println("DISAGREE issuer: raw DER bytes differ between x509view and ct-go")
		ok = false
	}

	if ok {
		fmt.Println("x509view agrees with certificate-transparency-go/x509 on SKI/AKI/issuer/subject")
	}
	return ok
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
