package asn1der

import "time"

// layouts maps the three date-time string lengths this package accepts to
// a time.Parse layout: UTCTime with seconds, UTCTime without seconds, and
// GeneralizedTime with seconds. All three are Zulu-only (trailing 'Z');
// fractional seconds and explicit UTC offsets are not accepted.
var layouts = map[int]string{
	13: "060102150405Z",
	11: "0601021504Z",
	15: "20060102150405Z",
}

func parseTime(body []byte) (time.Time, bool) {
	s := string(body)
	layout, ok := layouts[len(s)]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
