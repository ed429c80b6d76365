package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/G-Research/logingester/internal/common/health"
	"github.com/G-Research/logingester/internal/common/ingest"
	"github.com/G-Research/logingester/internal/common/requestid"
	"github.com/G-Research/logingester/internal/logingester/configuration"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const (
	testToken  = "secret-token"
	validEvent = `{"tenantId":"tenant-a","source":"order-service","environment":"dev","level":"info","type":"access","message":"GET /order"}`
)

var (
	baseTime      = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	defaultConfig = configuration.ServerConfig{
		MaxBatchEvents:  3,
		MaxBodyBytes:    4096,
		ShutdownTimeout: time.Second,
	}
)

type fakeBuffer struct {
	mu       sync.Mutex
	capacity int
	events   []*model.IngestedEvent
	flushErr error
}

func (b *fakeBuffer) TryEnqueue(event *model.IngestedEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.capacity {
		return false
	}
	b.events = append(b.events, event)
	return true
}

func (b *fakeBuffer) Enqueue(ctx context.Context, event *model.IngestedEvent) error {
	if b.TryEnqueue(event) {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBuffer) FlushNow(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.events)
	b.events = nil
	return n, b.flushErr
}

func (b *fakeBuffer) Stats() ingest.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ingest.Stats{State: "running", QueueDepth: len(b.events), QueueCapacity: b.capacity}
}

func newTestServer(config configuration.ServerConfig, buffer *fakeBuffer) http.Handler {
	s := NewServer(config, testToken, buffer, health.NewMultiChecker())
	s.clock = clock.NewFakeClock(baseTime)
	return s.Handler()
}

func do(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func batchOf(n int) string {
	events := make([]string, n)
	for i := range events {
		events[i] = validEvent
	}
	return "[" + strings.Join(events, ",") + "]"
}

func TestIngestOne_Accepted(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs", validEvent)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestid.HeaderKey))

	require.Len(t, buffer.events, 1)
	event := buffer.events[0]
	assert.Len(t, event.IngestId, 26)
	assert.Equal(t, baseTime, event.ReceivedAt)
	assert.Equal(t, "tenant-a", event.TenantId)
	assert.Equal(t, model.TypeAccess, event.Type)
}

func TestIngestOne_Overloaded(t *testing.T) {
	buffer := &fakeBuffer{capacity: 0}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs", validEvent)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"service overloaded"}`, rec.Body.String())
}

func TestIngestOne_Malformed(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs", `{"tenantId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, buffer.events)
}

func TestIngestOne_Invalid(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	invalid := strings.Replace(validEvent, `"level":"info"`, `"level":"verbose"`, 1)
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs", invalid)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problems := decodeBody(t, rec)["detail"].([]interface{})
	require.Len(t, problems, 1)
	assert.Equal(t, "level", problems[0].(map[string]interface{})["field"])
	assert.Empty(t, buffer.events)
}

func TestIngestOne_BodyTooLarge(t *testing.T) {
	config := defaultConfig
	config.MaxBodyBytes = 16
	rec := do(newTestServer(config, &fakeBuffer{capacity: 10}), http.MethodPost, "/v1/logs", validEvent)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIngestBatch_Accepted(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs/batch", batchOf(3))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":true,"count":3}`, rec.Body.String())
	require.Len(t, buffer.events, 3)
	assert.NotEqual(t, buffer.events[0].IngestId, buffer.events[1].IngestId)
}

func TestIngestBatch_Empty(t *testing.T) {
	rec := do(newTestServer(defaultConfig, &fakeBuffer{capacity: 10}), http.MethodPost, "/v1/logs/batch", `[]`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":true,"count":0}`, rec.Body.String())
}

func TestIngestBatch_TooLarge(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs/batch", batchOf(4))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"detail":"batch too large (max 3)"}`, rec.Body.String())
	assert.Empty(t, buffer.events)
}

func TestIngestBatch_OneInvalidRejectsAll(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	invalid := strings.Replace(validEvent, `"environment":"dev"`, `"environment":"qa"`, 1)
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs/batch", "["+validEvent+","+invalid+"]")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problems := decodeBody(t, rec)["detail"].([]interface{})
	require.Len(t, problems, 1)
	assert.Equal(t, "[1].environment", problems[0].(map[string]interface{})["field"])
	assert.Empty(t, buffer.events)
}

func TestIngestBatch_PartiallyRejected(t *testing.T) {
	buffer := &fakeBuffer{capacity: 2}
	rec := do(newTestServer(defaultConfig, buffer), http.MethodPost, "/v1/logs/batch", batchOf(3))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"service overloaded","accepted":false,"count":2,"dropped":1}`, rec.Body.String())
	assert.Len(t, buffer.events, 2)
}

func TestIngestBatch_BlockingEnqueueTimesOut(t *testing.T) {
	config := defaultConfig
	config.BatchEnqueueTimeout = 20 * time.Millisecond
	buffer := &fakeBuffer{capacity: 1}
	rec := do(newTestServer(config, buffer), http.MethodPost, "/v1/logs/batch", batchOf(3))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(2), body["dropped"])
}

func TestStats(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	handler := newTestServer(defaultConfig, buffer)
	do(handler, http.MethodPost, "/v1/logs", validEvent)

	rec := do(handler, http.MethodGet, "/v1/admin/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, float64(1), body["queueDepth"])
	assert.Equal(t, float64(10), body["queueCapacity"])
}

func TestFlush(t *testing.T) {
	buffer := &fakeBuffer{capacity: 10}
	handler := newTestServer(defaultConfig, buffer)
	do(handler, http.MethodPost, "/v1/logs/batch", batchOf(2))

	rec := do(handler, http.MethodPost, "/v1/admin/flush", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flushed":2}`, rec.Body.String())

	buffer.flushErr = errors.New("connection refused")
	do(handler, http.MethodPost, "/v1/logs", validEvent)
	rec = do(handler, http.MethodPost, "/v1/admin/flush", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "connection refused")
}

func TestAuthentication(t *testing.T) {
	handler := newTestServer(defaultConfig, &fakeBuffer{capacity: 10})

	tests := map[string]string{
		"missing header": "",
		"wrong token":    "Bearer nope",
		"wrong scheme":   "Basic " + testToken,
		"no credentials": "Bearer",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(validEvent))
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"detail":"unauthorized"}`, rec.Body.String())
		})
	}

	t.Run("scheme is case insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(validEvent))
		req.Header.Set("Authorization", "bearer "+testToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestAuthentication_DisabledWithoutToken(t *testing.T) {
	handler := NewServer(defaultConfig, "", &fakeBuffer{capacity: 10}, health.NewMultiChecker()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(validEvent))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWrongMethod(t *testing.T) {
	rec := do(newTestServer(defaultConfig, &fakeBuffer{capacity: 10}), http.MethodGet, "/v1/logs", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestHealthAndReadiness(t *testing.T) {
	startup := health.NewStartupCompleteChecker()
	handler := NewServer(defaultConfig, testToken, &fakeBuffer{}, health.NewMultiChecker(startup)).Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/ready").Code)

	startup.MarkComplete()
	rec := get("/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestRequestIdPropagated(t *testing.T) {
	handler := newTestServer(defaultConfig, &fakeBuffer{capacity: 10})

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(validEvent))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set(requestid.HeaderKey, "client-id-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-id-1", rec.Header().Get(requestid.HeaderKey))
}
