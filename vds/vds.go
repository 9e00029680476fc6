// Package vds decodes the ICAO VDS-NC JSON envelope: a signed payload, the
// Barcode Signing Certificate that issued the signature, and the raw
// signature bytes. Decoding follows the teacher's pattern of plain
// exported structs with json tags (core/objects.go) rather than a
// hand-written unmarshaller, since the envelope's shape is fixed and
// json tags already express the one field-name remap ICAO's wire format
// needs (hdr.is -> IssuingCountry).
package vds

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/letsencrypt-icao/vdsnc/berrors"
	"github.com/letsencrypt-icao/vdsnc/canonjson"
)

// Hdr is the VDS header: message type, schema version, and the
// 3-letter issuing country code carried on the wire as "is".
type Hdr struct {
	Type           string `json:"t"`
	Version        int    `json:"v"`
	IssuingCountry string `json:"is"`
}

// Data is the signed payload: the header plus an opaque, type-dependent
// message body (icao.vacc, icao.test, ...) that this package does not
// need to interpret to verify the envelope.
type Data struct {
	Hdr Hdr             `json:"hdr"`
	Msg json.RawMessage `json:"msg"`
}

// Sig is the envelope's signature block as it appears on the wire, before
// its base64url fields are decoded.
type Sig struct {
	Alg   string `json:"alg"`
	Cer   string `json:"cer"`
	Sigvl string `json:"sigvl"`
}

// allowedAlgs is the set of signature algorithm identifiers the wire
// format is allowed to declare.
var allowedAlgs = map[string]bool{"ES256": true, "ES384": true, "ES512": true}

// VDS is a decoded envelope. OriginalText is the verbatim bytes the host
// supplied; the verifier canonicalises a field sliced out of this text,
// never out of Data, since re-encoding Data could change byte-for-byte
// canonical output relative to what the signer actually signed.
type VDS struct {
	Data Data
	Sig  Sig

	// CertDER and SignatureRS are sig.cer and sig.sigvl, base64url-decoded.
	CertDER     []byte
	SignatureRS []byte

	OriginalText []byte
}

type envelope struct {
	Data Data `json:"data"`
	Sig  Sig  `json:"sig"`
}

// Decode parses jsonText as a VDS envelope, validating that every field
// the verifier depends on is present and well-formed.
func Decode(jsonText []byte) (*VDS, error) {
	var env envelope
	if err := json.Unmarshal(jsonText, &env); err != nil {
		return nil, berrors.JSONDecodingError("%v", err)
	}

	if env.Data.Hdr.Type == "" {
		return nil, berrors.JSONDecodingError("missing hdr.t")
	}
	if len(env.Data.Hdr.IssuingCountry) != 3 {
		return nil, berrors.JSONDecodingError("hdr.is must be a 3-letter country code, got %q", env.Data.Hdr.IssuingCountry)
	}
	if !allowedAlgs[env.Sig.Alg] {
		return nil, berrors.JSONDecodingError("unsupported sig.alg %q", env.Sig.Alg)
	}
	if env.Sig.Cer == "" {
		return nil, berrors.JSONDecodingError("missing sig.cer")
	}
	if env.Sig.Sigvl == "" {
		return nil, berrors.JSONDecodingError("missing sig.sigvl")
	}

	certDER, err := decodeBase64URL(env.Sig.Cer)
	if err != nil {
		return nil, berrors.JSONDecodingError("sig.cer: %v", err)
	}
	sigRS, err := decodeBase64URL(env.Sig.Sigvl)
	if err != nil {
		return nil, berrors.JSONDecodingError("sig.sigvl: %v", err)
	}

	return &VDS{
		Data:         env.Data,
		Sig:          env.Sig,
		CertDER:      certDER,
		SignatureRS:  sigRS,
		OriginalText: jsonText,
	}, nil
}

// decodeBase64URL decodes s as URL-safe base64, tolerating the presence
// or absence of '=' padding.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}

// CanonicalData re-parses OriginalText and returns the canonical-JSON
// encoding of its "data" field, sliced directly out of the verbatim text
// the host supplied rather than re-encoded from v.Data -- the message the
// VDS signature was computed over.
func (v *VDS) CanonicalData() ([]byte, error) {
	doc, err := canonjson.Parse(v.OriginalText)
	if err != nil {
		return nil, berrors.ParseJSONFailedCanonicalizationError("%v", err)
	}
	data, ok := doc.Field("data")
	if !ok {
		return nil, berrors.ParseJSONFailedCanonicalizationError("original text has no \"data\" field")
	}
	out, err := canonjson.Encode(data)
	if err != nil {
		return nil, berrors.ParseJSONFailedCanonicalizationError("%v", err)
	}
	return out, nil
}
