package relay

import "strings"

const redactionMask = "[REDACTED]"

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"x-csrf-token":        {},
}

// RedactHeaders returns a copy of rec whose credential-bearing header values
// are masked. Header names and every other field are left as they were.
func RedactHeaders(rec Record) Record {
	if len(rec.Headers) == 0 {
		return rec
	}
	out := make(map[string]string, len(rec.Headers))
	for k, v := range rec.Headers {
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
			out[k] = redactionMask
			continue
		}
		out[k] = v
	}
	rec.Headers = out
	return rec
}
