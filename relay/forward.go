package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// ErrorKind classifies why a forward attempt failed.
type ErrorKind int

const (
	ErrEncode ErrorKind = iota + 1
	ErrRequest
	ErrTransport
	ErrResponse
	ErrPanic
)

func (k ErrorKind) String() string {
	switch k {
	case ErrEncode:
		return "encode"
	case ErrRequest:
		return "request"
	case ErrTransport:
		return "transport"
	case ErrResponse:
		return "response"
	case ErrPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ForwardError is the error carried by a failed Result.
type ForwardError struct {
	Kind ErrorKind
	Err  error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// Result describes one forward attempt. Err is nil whenever the sink
// answered, whatever the status.
type Result struct {
	StatusCode int
	Body       string
	Err        error
}

// OK reports whether the sink was reached.
func (res Result) OK() bool {
	return res.Err == nil
}

// Forward posts rec to the sink once. It never panics and never returns an
// error to the caller; the outcome is logged and handed back for inspection.
func (r *Relay) Forward(ctx context.Context, rec Record) (res Result) {
	if r == nil || !r.enabled {
		return Result{}
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: &ForwardError{Kind: ErrPanic, Err: fmt.Errorf("%v", p)}}
		}
		if res.Err != nil {
			r.logger.Printf("Error sending to custom program: %v", res.Err)
			return
		}
		r.logger.Printf("Sent to program: %d - %s", res.StatusCode, res.Body)
	}()

	return r.post(ctx, rec)
}

func (r *Relay) post(ctx context.Context, rec Record) Result {
	if r.cfg.RedactHeaders {
		rec = RedactHeaders(rec)
	}
	payload, err := EncodeRecord(rec)
	if err != nil {
		return Result{Err: &ForwardError{Kind: ErrEncode, Err: err}}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: &ForwardError{Kind: ErrRequest, Err: err}}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{Err: &ForwardError{Kind: ErrTransport, Err: err}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Err: &ForwardError{Kind: ErrResponse, Err: err}}
	}

	return Result{StatusCode: resp.StatusCode, Body: string(body)}
}
