package flush

import (
	"net/http"
	"strings"
)

// Mask replaces the value of every redacted header.
const Mask = "****"

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-token":       {},
	"x-csrf-token":  {},
	"x-xsrf-token":  {},
	"x-user-id":     {},
	"x-uid":         {},
}

// HeaderMap converts a captured header representation to a plain mapping.
// Supported forms are map[string]string, [][2]string and http.Header; any
// other value yields an empty map.
func HeaderMap(headers any) map[string]string {
	out := map[string]string{}
	switch h := headers.(type) {
	case map[string]string:
		for k, v := range h {
			out[k] = v
		}
	case [][2]string:
		for _, kv := range h {
			out[kv[0]] = kv[1]
		}
	case http.Header:
		for k, v := range h {
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}

// Redact returns a copy of headers with sensitive values masked. Names are
// matched case-insensitively and kept as given.
func Redact(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
			v = Mask
		}
		out[k] = v
	}
	return out
}
