package goproxy_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/elazarl/goproxy"

	relaygoproxy "github.com/shadowproxy/shadowrelay/goproxy"
	"github.com/shadowproxy/shadowrelay/internal/testserver"
	"github.com/shadowproxy/shadowrelay/relay"
)

func newRelay(t *testing.T, forwardResponses bool) (*relay.Relay, *testserver.MockServer) {
	t.Helper()
	server, err := testserver.StartMockServer()
	if err != nil {
		t.Fatalf("start mock server: %v", err)
	}
	t.Cleanup(server.Stop)

	r, err := relay.New(relay.Config{
		Endpoint:         server.Endpoint(),
		ForwardResponses: forwardResponses,
		Logger:           log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("init relay: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, server
}

func proxiedClient(t *testing.T, r *relay.Relay) *http.Client {
	t.Helper()
	proxy := goproxy.NewProxyHttpServer()
	relaygoproxy.Attach(proxy, r)

	front := httptest.NewServer(proxy)
	t.Cleanup(front.Close)

	proxyURL, err := url.Parse(front.URL)
	if err != nil {
		t.Fatalf("parse proxy url: %v", err)
	}
	return &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
}

func TestAttachReportsProxiedRequest(t *testing.T) {
	r, sink := newRelay(t, false)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		_, _ = w.Write([]byte("upstream got " + string(body)))
	}))
	defer upstream.Close()

	client := proxiedClient(t, r)
	req, err := http.NewRequest(http.MethodPost, upstream.URL+"/submit", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Test", "1")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("proxied request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != "upstream got hello" {
		t.Fatalf("flow was altered: %q", body)
	}

	deliveries := sink.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	rec := deliveries[0].Record
	if rec.Type != relay.TypeRequest || rec.Method != http.MethodPost || rec.Body != "hello" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if rec.URL != upstream.URL+"/submit" || rec.Headers["X-Test"] != "1" {
		t.Fatalf("unexpected record %#v", rec)
	}
}

func TestAttachReportsResponsesWhenEnabled(t *testing.T) {
	r, sink := newRelay(t, true)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nothing here"))
	}))
	defer upstream.Close()

	resp, err := proxiedClient(t, r).Get(upstream.URL + "/missing")
	if err != nil {
		t.Fatalf("proxied request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound || string(body) != "nothing here" {
		t.Fatalf("flow was altered: %d %q", resp.StatusCode, body)
	}

	deliveries := sink.Deliveries()
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	rec := deliveries[1].Record
	if rec.Type != relay.TypeResponse || rec.StatusCode != http.StatusNotFound || rec.Body != "nothing here" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if rec.URL != upstream.URL+"/missing" {
		t.Fatalf("unexpected url %s", rec.URL)
	}
}

func TestAttachSurvivesUnreachableSink(t *testing.T) {
	r, err := relay.New(relay.Config{
		Endpoint:         "http://127.0.0.1:1/data",
		ForwardResponses: true,
		Logger:           log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("init relay: %v", err)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("fine"))
	}))
	defer upstream.Close()

	resp, err := proxiedClient(t, r).Get(upstream.URL)
	if err != nil {
		t.Fatalf("proxied request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != "fine" {
		t.Fatalf("flow was altered: %q", body)
	}
}

func TestResponseHookSkipsMissingResponse(t *testing.T) {
	r, sink := newRelay(t, true)
	hook := relaygoproxy.ResponseHook(r)
	if got := hook(nil, &goproxy.ProxyCtx{}); got != nil {
		t.Fatalf("expected nil response, got %v", got)
	}
	if n := len(sink.Deliveries()); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}
