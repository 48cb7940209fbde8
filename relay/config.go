package relay

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultEndpoint is the sink the relay posts to when Config.Endpoint is empty.
	DefaultEndpoint    = "http://127.0.0.1:5000/data"
	defaultHTTPTimeout = 10 * time.Second
)

// Config controls how a Relay builds and forwards records.
type Config struct {
	Endpoint string
	Enabled  *bool

	// ForwardResponses turns on forwarding of response records. Response
	// records are always built and their bodies logged.
	ForwardResponses bool

	// RedactHeaders masks credential headers (Authorization, Cookie, ...)
	// before records leave the process.
	RedactHeaders bool

	// Timeout bounds a single forward attempt. Zero selects the default.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

func validateConfig(endpoint string, timeout time.Duration) error {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("endpoint must be an absolute http or https URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("endpoint must be an absolute http or https URL")
	}
	if timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}
