package telemetry

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Encode renders a reading set as the node's wire payload: a flat JSON
// object whose keys appear in reading-set insertion order. Valid
// floats are rounded to the nearest integer, booleans encode as 0/1,
// and failed readings encode as the sentinel (999, or 999.99 for
// floats) so installed consumers keep working.
func Encode(rs *ReadingSet) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range rs.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		r, _ := rs.Get(name)
		buf.WriteString(encodeValue(r))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func encodeValue(r Reading) string {
	if !r.Valid {
		if r.Kind == Float {
			return strconv.FormatFloat(SentinelFloat, 'f', 2, 64)
		}
		return strconv.Itoa(SentinelInt)
	}
	return strconv.Itoa(r.wireInt())
}
