//go:build ignore

// Serve the pi5web directory for local development:
//
//	go run serve.go
package main

import (
	"log"
	"net/http"
)

func main() {
	log.Fatal(http.ListenAndServe("localhost:8080", http.FileServer(http.Dir("."))))
}
