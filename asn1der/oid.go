package asn1der

import (
	"strconv"
	"strings"
)

// decodeOID renders an OBJECT IDENTIFIER content octet string as a
// dotted-decimal string, per the X.690 encoding: the first byte packs the
// first two arcs as 40*arc0+arc1, and every subsequent arc is a base-128
// value whose continuation bytes have the high bit set.
func decodeOID(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	first := int(body[0])
	var arc0, arc1 int
	switch {
	case first < 40:
		arc0, arc1 = 0, first
	case first < 80:
		arc0, arc1 = 1, first-40
	default:
		arc0, arc1 = 2, first-80
	}
	arcs := []int{arc0, arc1}

	val := 0
	for i := 1; i < len(body); i++ {
		b := body[i]
		val = val<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			arcs = append(arcs, val)
			val = 0
		}
	}

	parts := make([]string, len(arcs))
	for i, v := range arcs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}
