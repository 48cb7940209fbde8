package relay

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"
)

// Relay turns intercepted flows into records and posts them to the sink.
// A Relay is safe for concurrent use; its configuration is fixed at New.
type Relay struct {
	cfg     Config
	client  *http.Client
	logger  *log.Logger
	enabled bool
}

// New validates cfg, applies defaults and returns a ready Relay.
// A Relay with Enabled set to false still logs bodies but never sends.
func New(cfg Config) (*Relay, error) {
	enabled := true
	if cfg.Enabled != nil {
		enabled = *cfg.Enabled
	}
	if !enabled {
		return newNoopRelay(cfg), nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	if err := validateConfig(endpoint, cfg.Timeout); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	return &Relay{
		cfg: Config{
			Endpoint:         endpoint,
			Enabled:          cfg.Enabled,
			ForwardResponses: cfg.ForwardResponses,
			RedactHeaders:    cfg.RedactHeaders,
			Timeout:          timeout,
			HTTPClient:       client,
			Logger:           logger,
		},
		client:  client,
		logger:  logger,
		enabled: true,
	}, nil
}

// NewNoop returns a disabled Relay.
func NewNoop() *Relay {
	return newNoopRelay(Config{})
}

func newNoopRelay(cfg Config) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Relay{
		cfg: Config{
			Endpoint:         cfg.Endpoint,
			Enabled:          cfg.Enabled,
			ForwardResponses: cfg.ForwardResponses,
			RedactHeaders:    cfg.RedactHeaders,
			Timeout:          cfg.Timeout,
			HTTPClient:       cfg.HTTPClient,
			Logger:           logger,
		},
		client:  cfg.HTTPClient,
		logger:  logger,
		enabled: false,
	}
}

func defaultLogger() *log.Logger {
	return log.New(os.Stdout, "", 0)
}

// OnRequest handles an intercepted request: the body text is logged and the
// record is forwarded. Forwarding failures are logged, never returned.
func (r *Relay) OnRequest(ctx context.Context, v RequestView) {
	if r == nil || v == nil {
		return
	}
	rec := NewRequestRecord(v)
	r.logger.Println(rec.Body)
	if !r.enabled {
		return
	}
	r.Forward(ctx, rec)
}

// OnResponse handles an intercepted response. The record is only forwarded
// when Config.ForwardResponses is set.
func (r *Relay) OnResponse(ctx context.Context, v ResponseView) {
	if r == nil || v == nil {
		return
	}
	rec := NewResponseRecord(v)
	r.logger.Println(rec.Body)
	if !r.enabled || !r.cfg.ForwardResponses {
		return
	}
	r.Forward(ctx, rec)
}

// Enabled reports whether the relay sends records at all.
func (r *Relay) Enabled() bool {
	if r == nil {
		return false
	}
	return r.enabled
}

// ForwardsResponses reports whether response records are sent.
func (r *Relay) ForwardsResponses() bool {
	return r.Enabled() && r.cfg.ForwardResponses
}

// Endpoint returns the sink URL records are posted to.
func (r *Relay) Endpoint() string {
	if r == nil {
		return ""
	}
	return r.cfg.Endpoint
}

// Timeout returns the bound applied to a single forward attempt.
func (r *Relay) Timeout() time.Duration {
	if r == nil {
		return 0
	}
	return r.cfg.Timeout
}

// Close releases idle connections held for the sink.
func (r *Relay) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	r.client.CloseIdleConnections()
	return nil
}
