package relay

import (
	"bytes"
	"encoding/json"

	"github.com/valyala/bytebufferpool"
)

// RecordType tells the sink which side of a flow a record describes.
type RecordType string

const (
	TypeRequest  RecordType = "request"
	TypeResponse RecordType = "response"
)

// Record is the flat snapshot of one intercepted request or response.
// Method is only encoded on requests and StatusCode only on responses, and
// each is written even when zero.
type Record struct {
	Type       RecordType        `json:"type"`
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// RequestView is the part of an intercepted request flow the relay reads.
type RequestView interface {
	Method() string
	URL() string
	Headers() map[string]string
	Text() string
}

// ResponseView is the part of an intercepted response flow the relay reads.
// URL reports the originating request's URL.
type ResponseView interface {
	URL() string
	StatusCode() int
	Headers() map[string]string
	Text() string
}

// NewRequestRecord snapshots a request flow.
func NewRequestRecord(v RequestView) Record {
	return Record{
		Type:    TypeRequest,
		Method:  v.Method(),
		URL:     v.URL(),
		Headers: copyHeaders(v.Headers()),
		Body:    v.Text(),
	}
}

// NewResponseRecord snapshots a response flow.
func NewResponseRecord(v ResponseView) Record {
	return Record{
		Type:       TypeResponse,
		URL:        v.URL(),
		StatusCode: v.StatusCode(),
		Headers:    copyHeaders(v.Headers()),
		Body:       v.Text(),
	}
}

// EncodeRecord returns the JSON form posted to the sink. HTML characters are
// left unescaped so bodies read the same in the sink's logs.
func EncodeRecord(rec Record) ([]byte, error) {
	if rec.Headers == nil {
		rec.Headers = map[string]string{}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec.wire()); err != nil {
		return nil, err
	}
	return append([]byte(nil), bytes.TrimSuffix(buf.B, []byte("\n"))...), nil
}

// MarshalJSON encodes rec the way EncodeRecord does.
func (rec Record) MarshalJSON() ([]byte, error) {
	return EncodeRecord(rec)
}

type requestWire struct {
	Type    RecordType        `json:"type"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

type responseWire struct {
	Type       RecordType        `json:"type"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// plainRecord has Record's fields without its MarshalJSON.
type plainRecord Record

func (rec Record) wire() interface{} {
	switch rec.Type {
	case TypeRequest:
		return requestWire{Type: rec.Type, Method: rec.Method, URL: rec.URL, Headers: rec.Headers, Body: rec.Body}
	case TypeResponse:
		return responseWire{Type: rec.Type, URL: rec.URL, StatusCode: rec.StatusCode, Headers: rec.Headers, Body: rec.Body}
	default:
		return plainRecord(rec)
	}
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
