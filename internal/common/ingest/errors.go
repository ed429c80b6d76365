package ingest

import "github.com/pkg/errors"

var (
	// ErrEngineClosed is returned to producers once the buffer has begun shutting down.
	ErrEngineClosed = errors.New("ingest buffer is closed")
	// ErrAlreadyStarted is returned by Start when the worker is already running.
	ErrAlreadyStarted = errors.New("ingest buffer is already running")
	// ErrInvalidConfig wraps every BufferConfig validation failure.
	ErrInvalidConfig = errors.New("invalid ingest buffer configuration")
)
