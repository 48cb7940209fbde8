// Package nethttp adapts net/http requests and responses to relay views.
package nethttp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/shadowproxy/shadowrelay/relay"
)

// RequestView exposes an *http.Request to the relay.
type RequestView struct {
	method  string
	url     string
	headers map[string]string
	text    string
}

func (v *RequestView) Method() string             { return v.method }
func (v *RequestView) URL() string                { return v.url }
func (v *RequestView) Headers() map[string]string { return v.headers }
func (v *RequestView) Text() string               { return v.text }

// ResponseView exposes an *http.Response to the relay.
type ResponseView struct {
	url     string
	status  int
	headers map[string]string
	text    string
}

func (v *ResponseView) URL() string                { return v.url }
func (v *ResponseView) StatusCode() int            { return v.status }
func (v *ResponseView) Headers() map[string]string { return v.headers }
func (v *ResponseView) Text() string               { return v.text }

var (
	_ relay.RequestView  = (*RequestView)(nil)
	_ relay.ResponseView = (*ResponseView)(nil)
)

// NewRequestView reads r's body and puts an identical reader back, so the
// request can still be served or sent upstream.
func NewRequestView(r *http.Request) *RequestView {
	headers := relay.HeaderMap(r.Header)
	raw := drainBody(&r.Body)
	return &RequestView{
		method:  r.Method,
		url:     EffectiveURL(r),
		headers: headers,
		text:    relay.DecodeText(raw, headers),
	}
}

// NewResponseView reads resp's body and puts an identical reader back.
func NewResponseView(resp *http.Response) *ResponseView {
	headers := relay.HeaderMap(resp.Header)
	raw := drainBody(&resp.Body)
	url := ""
	if resp.Request != nil {
		url = EffectiveURL(resp.Request)
	}
	return &ResponseView{
		url:     url,
		status:  resp.StatusCode,
		headers: headers,
		text:    relay.DecodeText(raw, headers),
	}
}

// drainBody reads up to relay.MaxBodyBytes of *body and replaces it with a
// reader that yields the same bytes, then whatever the original still holds.
// A read error is replayed to the host after the bytes read before it.
func drainBody(body *io.ReadCloser) []byte {
	if *body == nil || *body == http.NoBody {
		return nil
	}
	orig := *body
	raw, err := io.ReadAll(io.LimitReader(orig, relay.MaxBodyBytes))
	rest := io.Reader(orig)
	if err != nil {
		rest = errReader{err: err}
	}
	*body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(raw), rest),
		Closer: orig,
	}
	return raw
}

type readCloser struct {
	io.Reader
	io.Closer
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// EffectiveURL returns the absolute URL of r. Proxy requests already carry
// one; server requests are rebuilt from Host and TLS state.
func EffectiveURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.IsAbs() && r.URL.Host != "" {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if host == "" {
		return r.URL.RequestURI()
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// Middleware reports every request served by next to r: the request event
// fires before next runs and the response event after it returns.
func Middleware(r *relay.Relay) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqView := NewRequestView(req)
			r.OnRequest(req.Context(), reqView)

			capture := newResponseCapture(w)
			var recovered interface{}

			func() {
				defer func() {
					if rec := recover(); rec != nil {
						recovered = rec
						capture.ensureStatus(http.StatusInternalServerError)
					}
				}()
				next.ServeHTTP(capture, req)
			}()

			headers := relay.HeaderMap(capture.Header())
			r.OnResponse(req.Context(), &ResponseView{
				url:     reqView.url,
				status:  capture.statusCode(),
				headers: headers,
				text:    relay.DecodeText(capture.body.Bytes(), headers),
			})

			if recovered != nil {
				panic(recovered)
			}
		})
	}
}

type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newResponseCapture(w http.ResponseWriter) *responseCapture {
	return &responseCapture{ResponseWriter: w}
}

func (rw *responseCapture) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseCapture) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	if room := relay.MaxBodyBytes - rw.body.Len(); room > 0 && len(b) > 0 {
		captured := b
		if len(captured) > room {
			captured = captured[:room]
		}
		rw.body.Write(captured)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseCapture) ensureStatus(code int) {
	if rw.status == 0 || rw.status < code {
		rw.status = code
	}
}

func (rw *responseCapture) statusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseCapture) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *responseCapture) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

func (rw *responseCapture) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := rw.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}

var (
	_ http.Flusher  = (*responseCapture)(nil)
	_ http.Hijacker = (*responseCapture)(nil)
	_ http.Pusher   = (*responseCapture)(nil)
)
