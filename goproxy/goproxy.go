// Package goproxy registers a relay with a github.com/elazarl/goproxy server,
// the way an addon is loaded into an interception proxy.
package goproxy

import (
	"context"
	"net/http"

	"github.com/elazarl/goproxy"

	"github.com/shadowproxy/shadowrelay/nethttp"
	"github.com/shadowproxy/shadowrelay/relay"
)

// Attach hooks r into proxy. Every request the proxy sees is reported before
// it goes upstream, and every response before it is returned to the client.
// Flows pass through unmodified whatever happens to the forward.
func Attach(proxy *goproxy.ProxyHttpServer, r *relay.Relay) {
	if proxy == nil || r == nil {
		return
	}
	proxy.OnRequest().DoFunc(RequestHook(r))
	proxy.OnResponse().DoFunc(ResponseHook(r))
}

// RequestHook returns the goproxy request callback for r.
func RequestHook(r *relay.Relay) func(*http.Request, *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	return func(req *http.Request, _ *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		if req != nil {
			r.OnRequest(req.Context(), nethttp.NewRequestView(req))
		}
		return req, nil
	}
}

// ResponseHook returns the goproxy response callback for r. Responses that
// never arrived (upstream errors) are skipped.
func ResponseHook(r *relay.Relay) func(*http.Response, *goproxy.ProxyCtx) *http.Response {
	return func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		if resp == nil {
			return resp
		}
		if resp.Request == nil && ctx != nil {
			resp.Request = ctx.Req
		}
		reqCtx := context.Background()
		if resp.Request != nil {
			reqCtx = resp.Request.Context()
		}
		r.OnResponse(reqCtx, nethttp.NewResponseView(resp))
		return resp
	}
}
