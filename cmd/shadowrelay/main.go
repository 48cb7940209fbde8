// Command shadowrelay runs an intercepting proxy that reports every flow to a
// record sink.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/elazarl/goproxy"

	relaygoproxy "github.com/shadowproxy/shadowrelay/goproxy"
	"github.com/shadowproxy/shadowrelay/internal/config"
	"github.com/shadowproxy/shadowrelay/internal/timeouts"
	"github.com/shadowproxy/shadowrelay/relay"
)

func main() {
	addr := flag.String("addr", ":8080", "proxy listen address")
	verbose := flag.Bool("v", false, "log every proxied request")
	mitm := flag.Bool("mitm", true, "intercept HTTPS with the proxy's CA")
	flag.Parse()

	var env config.RelayEnv
	if err := config.ParseEnv(&env); err != nil {
		config.Exitf("shadowrelay: %v", err)
	}

	r, err := relay.New(env.RelayConfig())
	if err != nil {
		config.Exitf("shadowrelay: init relay: %v", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			log.Printf("relay close: %v", cerr)
		}
	}()

	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = *verbose
	if *mitm {
		proxy.OnRequest().HandleConnect(goproxy.AlwaysMitm)
	}
	relaygoproxy.Attach(proxy, r)

	server := &http.Server{
		Addr:              *addr,
		Handler:           proxy,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	go func() {
		log.Printf("[shadowrelay] proxy on %s, sink %s (enabled=%t responses=%t)",
			*addr, r.Endpoint(), r.Enabled(), r.ForwardsResponses())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt)
	<-shutdownCh
	log.Println("[shadowrelay] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
