package relay_test

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/shadowproxy/shadowrelay/relay"
)

func TestEncodeRequestRecordMatchesWireShape(t *testing.T) {
	rec := relay.NewRequestRecord(requestView{
		method:  "GET",
		url:     "http://example.com/",
		headers: map[string]string{"X-Test": "1"},
	})

	payload, err := relay.EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	expected := `{"type":"request","method":"GET","url":"http://example.com/","headers":{"X-Test":"1"},"body":""}`
	if string(payload) != expected {
		t.Fatalf("expected %s, got %s", expected, payload)
	}
}

func TestEncodeResponseRecordMatchesWireShape(t *testing.T) {
	rec := relay.NewResponseRecord(responseView{
		url:     "http://example.com/a",
		status:  http.StatusNotFound,
		headers: map[string]string{"Content-Type": "text/plain"},
		text:    "missing",
	})

	payload, err := relay.EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	expected := `{"type":"response","url":"http://example.com/a","status_code":404,"headers":{"Content-Type":"text/plain"},"body":"missing"}`
	if string(payload) != expected {
		t.Fatalf("expected %s, got %s", expected, payload)
	}
}

func TestEncodeRecordNilHeadersAsObject(t *testing.T) {
	payload, err := relay.EncodeRecord(relay.Record{Type: relay.TypeRequest, Method: "GET", URL: "http://a/"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	expected := `{"type":"request","method":"GET","url":"http://a/","headers":{},"body":""}`
	if string(payload) != expected {
		t.Fatalf("expected %s, got %s", expected, payload)
	}
}

func TestEncodeRecordKeepsZeroFieldsForType(t *testing.T) {
	payload, err := relay.EncodeRecord(relay.NewResponseRecord(responseView{url: "http://a/"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	expected := `{"type":"response","url":"http://a/","status_code":0,"headers":{},"body":""}`
	if string(payload) != expected {
		t.Fatalf("expected %s, got %s", expected, payload)
	}

	payload, err = relay.EncodeRecord(relay.NewRequestRecord(requestView{url: "http://a/"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	expected = `{"type":"request","method":"","url":"http://a/","headers":{},"body":""}`
	if string(payload) != expected {
		t.Fatalf("expected %s, got %s", expected, payload)
	}
}

func TestRecordMarshalJSONMatchesEncodeRecord(t *testing.T) {
	rec := relay.Record{Type: relay.TypeResponse, URL: "http://a/<b>", StatusCode: 204}

	viaMarshal, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	viaEncode, err := relay.EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var a, b map[string]interface{}
	if err := json.Unmarshal(viaMarshal, &a); err != nil {
		t.Fatalf("decode marshal output: %v", err)
	}
	if err := json.Unmarshal(viaEncode, &b); err != nil {
		t.Fatalf("decode encode output: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("marshal %s differs from encode %s", viaMarshal, viaEncode)
	}
}

func TestEncodeRecordRoundTrip(t *testing.T) {
	rec := relay.NewRequestRecord(requestView{
		method: "POST",
		url:    "https://example.com/search?q=a&b=<c>",
		headers: map[string]string{
			"x-lower-case": "kept",
			"X-Mixed-Case": "Kept Too",
			"Accept":       "text/html, application/json",
		},
		text: "line one\nline two é 🚀 <tag> & \"quoted\"",
	})

	payload, err := relay.EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded relay.Record
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, rec) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", rec, decoded)
	}
}

func TestNewRequestRecordCopiesHeaders(t *testing.T) {
	headers := map[string]string{"A": "1"}
	rec := relay.NewRequestRecord(requestView{method: "GET", url: "http://a/", headers: headers})
	headers["A"] = "changed"
	if rec.Headers["A"] != "1" {
		t.Fatalf("record headers changed with the view: %v", rec.Headers)
	}
}

func TestRedactHeadersMasksCredentials(t *testing.T) {
	rec := relay.Record{
		Type: relay.TypeRequest,
		URL:  "http://example.com/",
		Headers: map[string]string{
			"Authorization": "Bearer secret",
			"cookie":        "session=1",
			"Accept":        "*/*",
		},
		Body: "Authorization: stays in the body",
	}

	got := relay.RedactHeaders(rec)

	if got.Headers["Authorization"] != "[REDACTED]" || got.Headers["cookie"] != "[REDACTED]" {
		t.Fatalf("credentials not masked: %v", got.Headers)
	}
	if got.Headers["Accept"] != "*/*" || got.Body != rec.Body {
		t.Fatalf("unrelated fields changed: %#v", got)
	}
	if rec.Headers["Authorization"] != "Bearer secret" {
		t.Fatal("input record must not be modified")
	}
}
