package health

import (
	"net/http"
)

// SetupHttpMux registers /health, which only shows the process is serving, and /ready, which runs checker.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle("/health", NewHealthCheckHttpHandler(CheckerFunc(func() error { return nil }), "ok"))
	mux.Handle("/ready", NewHealthCheckHttpHandler(checker, "ready"))
}
