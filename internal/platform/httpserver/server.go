package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with conservative timeouts. The confirmation
// wait on a real ledger submission dominates request latency, so the write
// timeout stays above the configured ledger confirm timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
