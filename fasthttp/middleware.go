// Package fasthttp adapts github.com/valyala/fasthttp requests and responses
// to relay views.
package fasthttp

import (
	"context"

	"github.com/valyala/fasthttp"

	"github.com/shadowproxy/shadowrelay/relay"
)

type requestView struct {
	method  string
	url     string
	headers map[string]string
	text    string
}

func (v requestView) Method() string             { return v.method }
func (v requestView) URL() string                { return v.url }
func (v requestView) Headers() map[string]string { return v.headers }
func (v requestView) Text() string               { return v.text }

type responseView struct {
	url     string
	status  int
	headers map[string]string
	text    string
}

func (v responseView) URL() string                { return v.url }
func (v responseView) StatusCode() int            { return v.status }
func (v responseView) Headers() map[string]string { return v.headers }
func (v responseView) Text() string               { return v.text }

// NewRequestView snapshots the request held by ctx.
func NewRequestView(ctx *fasthttp.RequestCtx) relay.RequestView {
	headers := canonicalHeaders(ctx.Request.Header.VisitAll)
	return requestView{
		method:  string(ctx.Method()),
		url:     ctx.URI().String(),
		headers: headers,
		text:    relay.DecodeText(ctx.Request.Body(), headers),
	}
}

// NewResponseView snapshots the response currently held by ctx.
func NewResponseView(ctx *fasthttp.RequestCtx) relay.ResponseView {
	headers := canonicalHeaders(ctx.Response.Header.VisitAll)
	return responseView{
		url:     ctx.URI().String(),
		status:  ctx.Response.StatusCode(),
		headers: headers,
		text:    relay.DecodeText(ctx.Response.Body(), headers),
	}
}

// Middleware wraps a fasthttp handler so every request and response it
// serves is reported to r.
func Middleware(r *relay.Relay, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	if r == nil {
		return next
	}

	return func(ctx *fasthttp.RequestCtx) {
		// RequestCtx only carries server lifetime, not a per-request deadline.
		bg := context.Background()
		r.OnRequest(bg, NewRequestView(ctx))

		var recovered interface{}

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					recovered = rec
					ctx.Response.ResetBody()
					ctx.Response.SetStatusCode(fasthttp.StatusInternalServerError)
				}
			}()
			next(ctx)
		}()

		r.OnResponse(bg, NewResponseView(ctx))

		if recovered != nil {
			panic(recovered)
		}
	}
}

func canonicalHeaders(visit func(func(key, value []byte))) map[string]string {
	headers := make(map[string]string)
	visit(func(k, v []byte) {
		key := string(k)
		val := string(v)
		if existing, ok := headers[key]; ok {
			headers[key] = existing + ", " + val
		} else {
			headers[key] = val
		}
	})
	return headers
}
