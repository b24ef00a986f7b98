// Command sepserver is an HTTP front end for pkg/duet and pkg/repet,
// adapted from the noise-cancellation backend's main.go/server.go: same
// CORS middleware and multipart-upload handler shape, now serving
// POST /separate instead of POST /denoise.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"audiosep/internal/config"
)

func main() {
	port := flag.Int("port", 8080, "server port")
	configFile := flag.String("config", "", "YAML config file (defaults used if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("sepserver: %v", err)
		}
		cfg = loaded
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/separate", handleSeparate(cfg))

	handler := corsMiddleware(mux)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("audio separation server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
