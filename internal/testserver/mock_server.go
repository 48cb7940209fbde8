// Package testserver provides a mock record sink for integration tests.
package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/shadowproxy/shadowrelay/relay"
)

// Delivery is one POST the mock sink received.
type Delivery struct {
	ContentType string
	UserAgent   string
	Raw         []byte
	Record      relay.Record
}

// MockServer emulates the record sink used by tests.
type MockServer struct {
	srv *httptest.Server

	mu         sync.Mutex
	deliveries []Delivery
	responses  []int
	replyBody  string

	deliveryCh chan Delivery
}

// StartMockServer boots a mock sink on a loopback port.
func StartMockServer() (*MockServer, error) {
	ms := &MockServer{
		replyBody:  "ok",
		deliveryCh: make(chan Delivery, 100),
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen tcp4: %w", err)
	}

	server := httptest.NewUnstartedServer(http.HandlerFunc(ms.handle))
	server.Listener = listener
	server.Start()

	ms.srv = server
	return ms, nil
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/data" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	var rec relay.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	d := Delivery{
		ContentType: r.Header.Get("Content-Type"),
		UserAgent:   r.Header.Get("User-Agent"),
		Raw:         body,
		Record:      rec,
	}

	m.mu.Lock()
	status := http.StatusOK
	if len(m.responses) > 0 {
		status = m.responses[0]
		m.responses = m.responses[1:]
	}
	reply := m.replyBody
	m.deliveries = append(m.deliveries, d)
	select {
	case m.deliveryCh <- d:
	default:
	}
	m.mu.Unlock()

	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

// Endpoint returns the sink URL for the mock server.
func (m *MockServer) Endpoint() string {
	return m.srv.URL + "/data"
}

// SetResponses configures the sequence of HTTP statuses the mock server should emit.
func (m *MockServer) SetResponses(statuses []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]int(nil), statuses...)
}

// SetReplyBody changes the text written back for every delivery.
func (m *MockServer) SetReplyBody(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyBody = body
}

// Deliveries returns a snapshot of everything received so far.
func (m *MockServer) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivery, len(m.deliveries))
	copy(out, m.deliveries)
	return out
}

// WaitForDelivery blocks until a delivery is received or the timeout elapses.
func (m *MockServer) WaitForDelivery(timeout time.Duration) (Delivery, error) {
	select {
	case d := <-m.deliveryCh:
		return d, nil
	case <-time.After(timeout):
		return Delivery{}, fmt.Errorf("timeout waiting for delivery")
	}
}

// Stop shuts down the server and releases resources.
func (m *MockServer) Stop() {
	if m == nil || m.srv == nil {
		return
	}
	m.srv.Close()
}
