package model

import (
	"strings"
	"time"
)

type Environment string

const (
	EnvironmentDev     Environment = "dev"
	EnvironmentStaging Environment = "staging"
	EnvironmentProd    Environment = "prod"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

type Type string

const (
	TypeApp    Type = "app"
	TypeAccess Type = "access"
	TypeAudit  Type = "audit"
	TypeUI     Type = "ui"
)

// LogEvent is a log event as submitted by a client.  Low cardinality fields are top level; anything else belongs in
// Properties.
type LogEvent struct {
	// When the event occurred at the source.  Defaulted to the write time when absent.
	OccurredAt *time.Time `json:"occurredAt,omitempty"`

	TenantId    string      `json:"tenantId" validate:"required,min=2,max=64,notplaceholder"`
	Source      string      `json:"source" validate:"required,min=2,max=64,notplaceholder"`
	Environment Environment `json:"environment" validate:"required,oneof=dev staging prod"`
	Level       Level       `json:"level" validate:"required,oneof=debug info warn error fatal"`
	Type        Type        `json:"type" validate:"required,oneof=app access audit ui"`
	Message     string      `json:"message" validate:"required,min=1,max=2048,notplaceholder"`

	TraceId       *string `json:"traceId,omitempty" validate:"omitempty,max=128"`
	SpanId        *string `json:"spanId,omitempty" validate:"omitempty,max=128"`
	CorrelationId *string `json:"correlationId,omitempty" validate:"omitempty,max=128"`
	RequestId     *string `json:"requestId,omitempty" validate:"omitempty,max=128"`
	UserId        *string `json:"userId,omitempty" validate:"omitempty,max=128"`

	Path       *string `json:"path,omitempty" validate:"omitempty,max=512"`
	Method     *string `json:"method,omitempty" validate:"omitempty,max=16"`
	StatusCode *int    `json:"statusCode,omitempty" validate:"omitempty,min=100,max=599"`
	DurationMs *int64  `json:"durationMs,omitempty" validate:"omitempty,min=0,max=60000000"`

	// e.g. {name, message, stack}
	Exception  map[string]interface{} `json:"exception,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// IngestedEvent is a LogEvent that has been accepted by the service.  It is what flows through the ingest buffer
// into the sink.
type IngestedEvent struct {
	IngestId   string    `json:"ingestId"`
	ReceivedAt time.Time `json:"receivedAt"`
	LogEvent
}

// normalise trims the free text fields that are validated for placeholder values.
func (e *LogEvent) normalise() {
	e.TenantId = strings.TrimSpace(e.TenantId)
	e.Source = strings.TrimSpace(e.Source)
	e.Message = strings.TrimSpace(e.Message)
}
