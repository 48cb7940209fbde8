package relay

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/htmlindex"
)

// MaxBodyBytes bounds how much of a message body is captured and how much
// decoded text a single body may expand to.
const MaxBodyBytes = 8 << 20

// HeaderMap flattens h into a name/value map. Names keep the casing they
// have in h; repeated values are joined with ", ".
func HeaderMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// DecodeText turns a raw message body into text: Content-Encoding is undone
// and the Content-Type charset is converted to UTF-8. Any step that fails
// leaves the bytes as they were.
func DecodeText(raw []byte, headers map[string]string) string {
	if len(raw) == 0 {
		return ""
	}
	decoded := decodeContent(raw, headerValue(headers, "Content-Encoding"))
	return decodeCharset(decoded, headerValue(headers, "Content-Type"))
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func decodeContent(raw []byte, encoding string) []byte {
	if encoding == "" {
		return raw
	}
	codings := strings.Split(strings.ToLower(encoding), ",")
	data := raw
	for i := len(codings) - 1; i >= 0; i-- {
		out, ok := decodeWithEncoding(data, strings.TrimSpace(codings[i]))
		if !ok {
			return raw
		}
		data = out
	}
	return data
}

func decodeWithEncoding(raw []byte, coding string) ([]byte, bool) {
	switch coding {
	case "", "identity":
		return raw, true
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false
		}
		defer gr.Close()
		return readAll(gr)
	case "deflate":
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			data, ok := readAll(zr)
			zr.Close()
			if ok {
				return data, true
			}
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return readAll(fr)
	case "br":
		return readAll(brotli.NewReader(bytes.NewReader(raw)))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false
		}
		defer zr.Close()
		return readAll(zr)
	default:
		return nil, false
	}
}

// readAll stops after MaxBodyBytes of output; a longer stream is truncated.
func readAll(r io.Reader) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return nil, false
	}
	return data, true
}

func decodeCharset(data []byte, contentType string) string {
	if contentType == "" {
		return string(data)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(data)
	}
	name := strings.ToLower(strings.TrimSpace(params["charset"]))
	if name == "" || name == "utf-8" || name == "utf8" || name == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(data)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
