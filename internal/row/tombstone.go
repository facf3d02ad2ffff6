package row

import "strings"

// tombstone marks an explicit null in a hash field. No codec output can
// equal it: payloads starting with NUL are escaped by one extra NUL.
const tombstone = "\x00"

func escape(payload string) string {
	if strings.HasPrefix(payload, tombstone) {
		return tombstone + payload
	}
	return payload
}

// unescape returns the codec payload stored in raw, or null when raw is the
// tombstone.
func unescape(raw string) (payload string, null bool) {
	if raw == tombstone {
		return "", true
	}
	return strings.TrimPrefix(raw, tombstone), false
}
