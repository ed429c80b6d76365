package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/logingester/internal/common/requestid"
	"github.com/G-Research/logingester/internal/common/util"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const overloadedDetail = "service overloaded"

type detailResponse struct {
	Detail interface{} `json:"detail"`
}

type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type batchResponse struct {
	Detail   string `json:"detail,omitempty"`
	Accepted bool   `json:"accepted"`
	Count    int    `json:"count"`
	Dropped  int    `json:"dropped,omitempty"`
}

type flushResponse struct {
	Flushed int `json:"flushed"`
}

func (s *Server) ingestOne(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	event, err := model.DecodeEvent(bytes.NewReader(body))
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	if !s.buffer.TryEnqueue(s.ingested(event)) {
		writeDetail(w, http.StatusServiceUnavailable, overloadedDetail)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true})
}

func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	events, err := model.DecodeBatch(bytes.NewReader(body))
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	if len(events) > s.config.MaxBatchEvents {
		writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch too large (max %d)", s.config.MaxBatchEvents))
		return
	}

	accepted := s.enqueueAll(r.Context(), events)
	if accepted < len(events) {
		log.WithField("requestId", requestid.FromContextOrMissing(r.Context())).
			Warnf("Rejected %d of %d events in batch", len(events)-accepted, len(events))
		writeJSON(w, http.StatusServiceUnavailable, batchResponse{
			Detail:  overloadedDetail,
			Count:   accepted,
			Dropped: len(events) - accepted,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{Accepted: true, Count: accepted})
}

// enqueueAll queues events in order and returns how many were accepted.  Without a BatchEnqueueTimeout every event
// is offered once; with one, the whole batch shares a single deadline and the first event that misses it ends the
// attempt.
func (s *Server) enqueueAll(ctx context.Context, events []*model.LogEvent) int {
	accepted := 0
	if s.config.BatchEnqueueTimeout <= 0 {
		for _, event := range events {
			if s.buffer.TryEnqueue(s.ingested(event)) {
				accepted++
			}
		}
		return accepted
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.BatchEnqueueTimeout)
	defer cancel()
	for _, event := range events {
		if err := s.buffer.Enqueue(ctx, s.ingested(event)); err != nil {
			log.WithError(err).Debug("Stopped enqueueing batch")
			break
		}
		accepted++
	}
	return accepted
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buffer.Stats())
}

func (s *Server) flush(w http.ResponseWriter, r *http.Request) {
	n, err := s.buffer.FlushNow(r.Context())
	if err != nil {
		writeDetail(w, http.StatusBadGateway, fmt.Sprintf("flush of %d events failed: %s", n, err))
		return
	}
	writeJSON(w, http.StatusOK, flushResponse{Flushed: n})
}

func (s *Server) ingested(event *model.LogEvent) *model.IngestedEvent {
	return &model.IngestedEvent{
		IngestId:   util.NewULID(),
		ReceivedAt: s.clock.Now().UTC(),
		LogEvent:   *event,
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body larger than %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeDetail(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: validationErr.Problems})
		return
	}
	writeDetail(w, http.StatusBadRequest, err.Error())
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, detailResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to write response")
	}
}
