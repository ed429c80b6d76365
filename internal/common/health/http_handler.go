package health

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type statusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthCheckHttpHandler reports the result of checker as JSON: 200 with the given status when the check passes,
// 503 with the failure otherwise.
type HealthCheckHttpHandler struct {
	checker  Checker
	okStatus string
}

func NewHealthCheckHttpHandler(checker Checker, okStatus string) *HealthCheckHttpHandler {
	return &HealthCheckHttpHandler{
		checker:  checker,
		okStatus: okStatus,
	}
}

func (h *HealthCheckHttpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := h.checker.Check()
	if err == nil {
		log.Debugf("Health check %s passed", r.URL.Path)
		writeStatus(w, http.StatusOK, statusResponse{Status: h.okStatus})
		return
	}
	log.Warnf("Health check %s failed: %v", r.URL.Path, err)
	writeStatus(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Detail: err.Error()})
}

func writeStatus(w http.ResponseWriter, code int, body statusResponse) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to write health check response: %v", err)
	}
}
