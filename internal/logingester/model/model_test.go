package model

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validEvent = `{
	"occurredAt": "2026-01-01T08:19:16.966Z",
	"tenantId": "  jeddah ",
	"source": "authservice",
	"environment": "dev",
	"level": "error",
	"type": "app",
	"message": "Login failed: invalid password",
	"traceId": "a1b2c3d4e5f6",
	"correlationId": "req-9f1a",
	"statusCode": 401,
	"durationMs": 23,
	"properties": {"ip": "10.0.0.10", "username": "theakif"}
}`

func TestDecodeEvent_Valid(t *testing.T) {
	event, err := DecodeEvent(strings.NewReader(validEvent))
	require.NoError(t, err)

	assert.Equal(t, "jeddah", event.TenantId)
	assert.Equal(t, EnvironmentDev, event.Environment)
	assert.Equal(t, LevelError, event.Level)
	assert.Equal(t, TypeApp, event.Type)
	require.NotNil(t, event.OccurredAt)
	assert.Equal(t, 2026, event.OccurredAt.Year())
	require.NotNil(t, event.StatusCode)
	assert.Equal(t, 401, *event.StatusCode)
	assert.Equal(t, "theakif", event.Properties["username"])
	assert.Nil(t, event.SpanId)
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := map[string]struct {
		body          string
		expectedField string
	}{
		"placeholder tenant": {
			body:          `{"tenantId":"string","source":"svc","environment":"dev","level":"info","type":"app","message":"m"}`,
			expectedField: "tenantId",
		},
		"blank source": {
			body:          `{"tenantId":"t1","source":"   ","environment":"dev","level":"info","type":"app","message":"m"}`,
			expectedField: "source",
		},
		"short tenant": {
			body:          `{"tenantId":"t","source":"svc","environment":"dev","level":"info","type":"app","message":"m"}`,
			expectedField: "tenantId",
		},
		"placeholder message": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"app","message":" String "}`,
			expectedField: "message",
		},
		"unknown environment": {
			body:          `{"tenantId":"t1","source":"svc","environment":"qa","level":"info","type":"app","message":"m"}`,
			expectedField: "environment",
		},
		"missing level": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","type":"app","message":"m"}`,
			expectedField: "level",
		},
		"status code out of range": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"access","message":"m","statusCode":600}`,
			expectedField: "statusCode",
		},
		"negative duration": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"access","message":"m","durationMs":-1}`,
			expectedField: "durationMs",
		},
		"long method": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"access","message":"m","method":"` + strings.Repeat("G", 17) + `"}`,
			expectedField: "method",
		},
		"long message": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"app","message":"` + strings.Repeat("x", 2049) + `"}`,
			expectedField: "message",
		},
		"unknown field": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"app","message":"m","severity":"high"}`,
			expectedField: "severity",
		},
		"wrong type": {
			body:          `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"app","message":"m","statusCode":"ok"}`,
			expectedField: "statusCode",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent(strings.NewReader(tc.body))
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "expected a validation error, got %v", err)
			require.Len(t, validationErr.Problems, 1)
			assert.Equal(t, tc.expectedField, validationErr.Problems[0].Field)
			assert.NotEmpty(t, validationErr.Problems[0].Message)
		})
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     "",
		"truncated": `{"tenantId":"t1"`,
		"not json":  `tenantId=t1`,
		"trailing":  `{"tenantId":"t1"} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent(strings.NewReader(body))
			assert.True(t, errors.Is(err, ErrMalformed), "expected malformed, got %v", err)
		})
	}
}

func TestDecodeBatch(t *testing.T) {
	body := "[" + validEvent + "," + validEvent + "]"
	events, err := DecodeBatch(strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = DecodeBatch(strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeBatch_ReportsEveryInvalidEvent(t *testing.T) {
	invalid := `{"tenantId":"string","source":"svc","environment":"dev","level":"info","type":"app","message":"m"}`
	unknown := `{"tenantId":"t1","source":"svc","environment":"dev","level":"info","type":"app","message":"m","x":1}`
	body := "[" + validEvent + "," + invalid + "," + unknown + "]"

	_, err := DecodeBatch(strings.NewReader(body))
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Len(t, validationErr.Problems, 2)
	assert.Equal(t, "[1].tenantId", validationErr.Problems[0].Field)
	assert.Equal(t, "[2].x", validationErr.Problems[1].Field)
}

func TestDecodeBatch_NotAnArray(t *testing.T) {
	_, err := DecodeBatch(strings.NewReader(validEvent))
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = DecodeBatch(strings.NewReader("[{"))
	assert.True(t, errors.Is(err, ErrMalformed))
}
