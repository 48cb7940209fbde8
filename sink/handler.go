package sink

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/shadowproxy/shadowrelay/relay"
)

// Path is where relays post records.
const Path = "/data"

const maxRecordBytes = 32 << 20

// Handler serves the sink API: POST stores a record, GET lists what has
// been stored so far.
func Handler(store Store, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			receive(w, r, store, logger)
		case http.MethodGet:
			list(w, r, store, logger)
		default:
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func receive(w http.ResponseWriter, r *http.Request, store Store, logger *log.Logger) {
	var rec relay.Record
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRecordBytes))
	if err := dec.Decode(&rec); err != nil {
		logger.Printf("[sink] decode record: %v", err)
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if (rec.Type != relay.TypeRequest && rec.Type != relay.TypeResponse) || rec.URL == "" {
		logger.Printf("[sink] missing one or more required fields: type, url")
		http.Error(w, "missing one or more required fields: type, url", http.StatusBadRequest)
		return
	}

	entry, err := store.Add(r.Context(), rec)
	if err != nil {
		logger.Printf("[sink] store record: %v", err)
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}

	logger.Printf("[sink] %s %s %s", entry.ID, rec.Type, rec.URL)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func list(w http.ResponseWriter, r *http.Request, store Store, logger *log.Logger) {
	entries, err := store.List(r.Context())
	if err != nil {
		logger.Printf("[sink] list records: %v", err)
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
