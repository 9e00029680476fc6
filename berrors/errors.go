// Package berrors provides the flat error-kind taxonomy used throughout the
// VDS-NC verification pipeline. A VDSError carries exactly one ErrorKind and
// never nests: the verifier surfaces at most one failure, the first to occur
// in its ordered pipeline.
package berrors

import "fmt"

// ErrorKind provides a coarse category for VDSError.
type ErrorKind int

const (
	JsonDecodingError ErrorKind = iota
	NoMatchingCSCAFound
	CSCACertHashMismatch
	LoadCRLFailed
	VerifyCRLFailed
	BSCCertNoSerialNumber
	BSCCertRevoked
	ExtractBSCAkiFailed
	ExtractCSCASkiFailed
	BSCAkiMismatchCSCASki
	IssuerSubjectsDontMatch
	VerifyBSCSignatureFailed
	BSCKeyAlgorithmNotSupported
	VerifyVDSSignatureFailed
	ParseBSCCertFromVDSFailed
	ParseSignatureFromVDSFailed
	ParseJSONFailedCanonicalization
	LoadBSCPublicKeyDataFailed
)

// VerifyBSCCertNotInCRLFailed is an alias of BSCCertRevoked, named for
// parity with spec.md's taxonomy table.
const VerifyBSCCertNotInCRLFailed = BSCCertRevoked

var kindNames = map[ErrorKind]string{
	JsonDecodingError:               "JsonDecodingError",
	NoMatchingCSCAFound:             "NoMatchingCSCAFound",
	CSCACertHashMismatch:            "CSCACertHashMismatch",
	LoadCRLFailed:                   "LoadCRLFailed",
	VerifyCRLFailed:                 "VerifyCRLFailed",
	BSCCertNoSerialNumber:           "BSCCertNoSerialNumber",
	BSCCertRevoked:                  "BSCCertRevoked",
	ExtractBSCAkiFailed:             "ExtractBSCAkiFailed",
	ExtractCSCASkiFailed:            "ExtractCSCASkiFailed",
	BSCAkiMismatchCSCASki:           "BSCAkiMismatchCSCASki",
	IssuerSubjectsDontMatch:         "IssuerSubjectsDontMatch",
	VerifyBSCSignatureFailed:        "VerifyBSCSignatureFailed",
	BSCKeyAlgorithmNotSupported:     "BSCKeyAlgorithmNotSupported",
	VerifyVDSSignatureFailed:        "VerifyVDSSignatureFailed",
	ParseBSCCertFromVDSFailed:       "ParseBSCCertFromVDSFailed",
	ParseSignatureFromVDSFailed:     "ParseSignatureFromVDSFailed",
	ParseJSONFailedCanonicalization: "ParseJSONFailedCanonicalization",
	LoadBSCPublicKeyDataFailed:      "LoadBSCPublicKeyDataFailed",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UnknownErrorKind"
}

// VDSError represents a single, typed failure from the verification
// pipeline or its supporting components.
type VDSError struct {
	Kind   ErrorKind
	Detail string
	cause  error
}

func (e *VDSError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause, if any, for use with errors.Is/As.
func (e *VDSError) Unwrap() error {
	return e.cause
}

// New is a convenience function for creating a new VDSError.
func New(kind ErrorKind, msg string, args ...interface{}) error {
	return &VDSError{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Wrap creates a new VDSError of the given kind that wraps cause.
func Wrap(kind ErrorKind, cause error, msg string, args ...interface{}) error {
	return &VDSError{Kind: kind, Detail: fmt.Sprintf(msg, args...), cause: cause}
}

// Is reports whether err is a *VDSError of the given kind.
func Is(err error, kind ErrorKind) bool {
	vErr, ok := err.(*VDSError)
	if !ok {
		return false
	}
	return vErr.Kind == kind
}

// KindOf extracts the ErrorKind from err, returning ok=false if err is not
// a *VDSError.
func KindOf(err error) (ErrorKind, bool) {
	vErr, ok := err.(*VDSError)
	if !ok {
		return 0, false
	}
	return vErr.Kind, true
}

func JSONDecodingError(msg string, args ...interface{}) error {
	return New(JsonDecodingError, msg, args...)
}

func NoMatchingCSCAFoundError(msg string, args ...interface{}) error {
	return New(NoMatchingCSCAFound, msg, args...)
}

func CSCACertHashMismatchError(msg string, args ...interface{}) error {
	return New(CSCACertHashMismatch, msg, args...)
}

func LoadCRLFailedError(msg string, args ...interface{}) error {
	return New(LoadCRLFailed, msg, args...)
}

func VerifyCRLFailedError(msg string, args ...interface{}) error {
	return New(VerifyCRLFailed, msg, args...)
}

func BSCCertNoSerialNumberError(msg string, args ...interface{}) error {
	return New(BSCCertNoSerialNumber, msg, args...)
}

func BSCCertRevokedError(msg string, args ...interface{}) error {
	return New(BSCCertRevoked, msg, args...)
}

func ExtractBSCAkiFailedError(msg string, args ...interface{}) error {
	return New(ExtractBSCAkiFailed, msg, args...)
}

func ExtractCSCASkiFailedError(msg string, args ...interface{}) error {
	return New(ExtractCSCASkiFailed, msg, args...)
}

func BSCAkiMismatchCSCASkiError(msg string, args ...interface{}) error {
	return New(BSCAkiMismatchCSCASki, msg, args...)
}

func IssuerSubjectsDontMatchError(msg string, args ...interface{}) error {
	return New(IssuerSubjectsDontMatch, msg, args...)
}

func VerifyBSCSignatureFailedError(msg string, args ...interface{}) error {
	return New(VerifyBSCSignatureFailed, msg, args...)
}

func BSCKeyAlgorithmNotSupportedError(msg string, args ...interface{}) error {
	return New(BSCKeyAlgorithmNotSupported, msg, args...)
}

func VerifyVDSSignatureFailedError(msg string, args ...interface{}) error {
	return New(VerifyVDSSignatureFailed, msg, args...)
}

func ParseBSCCertFromVDSFailedError(msg string, args ...interface{}) error {
	return New(ParseBSCCertFromVDSFailed, msg, args...)
}

func ParseSignatureFromVDSFailedError(msg string, args ...interface{}) error {
	return New(ParseSignatureFromVDSFailed, msg, args...)
}

func ParseJSONFailedCanonicalizationError(msg string, args ...interface{}) error {
	return New(ParseJSONFailedCanonicalization, msg, args...)
}

func LoadBSCPublicKeyDataFailedError(msg string, args ...interface{}) error {
	return New(LoadBSCPublicKeyDataFailed, msg, args...)
}
