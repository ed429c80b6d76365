package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is returned when a request body is not syntactically valid JSON.
var ErrMalformed = errors.New("malformed JSON body")

// DecodeEvent reads exactly one event from r and validates it.  Unknown fields are rejected.
func DecodeEvent(r io.Reader) (*LogEvent, error) {
	event := &LogEvent{}
	if err := decodeStrict(r, event); err != nil {
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// DecodeBatch reads a JSON array of events from r and validates each of them.  A single invalid event rejects the
// whole batch; the returned ValidationError lists the problems of every invalid event.
func DecodeBatch(r io.Reader) ([]*LogEvent, error) {
	var raw []json.RawMessage
	if err := decodeStrict(r, &raw); err != nil {
		return nil, err
	}

	events := make([]*LogEvent, len(raw))
	var problems []Problem
	for i, msg := range raw {
		event := &LogEvent{}
		if err := decodeStrict(bytes.NewReader(msg), event); err != nil {
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				return nil, err
			}
			problems = append(problems, prefixProblems(i, validationErr.Problems)...)
			continue
		}
		if err := event.Validate(); err != nil {
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				return nil, err
			}
			problems = append(problems, prefixProblems(i, validationErr.Problems)...)
			continue
		}
		events[i] = event
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return events, nil
}

func prefixProblems(index int, problems []Problem) []Problem {
	out := make([]Problem, len(problems))
	for i, p := range problems {
		out[i] = Problem{Field: fmt.Sprintf("[%d].%s", index, p.Field), Message: p.Message}
	}
	return out
}

// decodeStrict decodes a single JSON value into v.  Syntax errors and trailing data are ErrMalformed; values of the
// wrong type and unknown fields are reported as a ValidationError.
func decodeStrict(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return classifyDecodeError(err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return errors.WithMessage(ErrMalformed, "unexpected data after the JSON value")
	}
	return nil
}

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return errors.WithMessage(ErrMalformed, "empty body")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return errors.WithMessage(ErrMalformed, "unexpected end of JSON input")
	case errors.As(err, &syntaxErr):
		return errors.WithMessagef(ErrMalformed, "%s at offset %d", syntaxErr.Error(), syntaxErr.Offset)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &ValidationError{Problems: []Problem{{
			Field:   field,
			Message: fmt.Sprintf("must be of type %s, got %s", typeErr.Type, typeErr.Value),
		}}}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return &ValidationError{Problems: []Problem{{Field: field, Message: "extra fields not permitted"}}}
	default:
		// e.g. a malformed timestamp
		return &ValidationError{Problems: []Problem{{Field: "body", Message: err.Error()}}}
	}
}
