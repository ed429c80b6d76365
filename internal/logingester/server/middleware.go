package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/logingester/internal/common/requestid"
)

const bearerScheme = "bearer"

// requireToken rejects requests that do not carry "Authorization: Bearer <token>".  An empty token disables the check.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, credentials, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, bearerScheme) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(credentials)), expected) != 1 {
			writeDetail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireMethod(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		entry := log.WithFields(log.Fields{
			"requestId":  requestid.FromContextOrMissing(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
		if recorder.status >= http.StatusInternalServerError {
			entry.Warn("Request failed")
		} else {
			entry.Debug("Request handled")
		}
	})
}
