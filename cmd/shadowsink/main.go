// Command shadowsink receives records posted by shadowrelay and keeps them in
// memory or in a SQLite database.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/shadowproxy/shadowrelay/internal/config"
	"github.com/shadowproxy/shadowrelay/internal/timeouts"
	"github.com/shadowproxy/shadowrelay/sink"
)

func main() {
	var env config.SinkEnv
	if err := config.ParseEnv(&env); err != nil {
		config.Exitf("shadowsink: %v", err)
	}

	addr := flag.String("addr", env.Addr, "listen address")
	dbPath := flag.String("db", env.DBPath, "SQLite database path; empty keeps records in memory")
	flag.Parse()

	var store sink.Store = sink.NewMemoryStore()
	if *dbPath != "" {
		sqlite, err := sink.OpenSQLite(context.Background(), *dbPath)
		if err != nil {
			config.Exitf("shadowsink: %v", err)
		}
		defer sqlite.Close()
		store = sqlite
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           sink.Handler(store, log.Default()),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	go func() {
		log.Printf("[shadowsink] listening on %s%s", *addr, sink.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt)
	<-shutdownCh
	log.Println("[shadowsink] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
