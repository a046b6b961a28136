package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataUnavailable means the gazetteer file is missing or unreadable.
	// Aggregate consumers degrade to empty results.
	ErrDataUnavailable = errors.New("gazetteer data unavailable")

	// ErrMalformedRecord marks a single record that failed field validation.
	// The record is skipped and the stream continues.
	ErrMalformedRecord = errors.New("malformed gazetteer record")

	// ErrStreamFailure means the parse stream failed mid-read. The partition
	// being generated is aborted; the caller retries the job.
	ErrStreamFailure = errors.New("gazetteer stream failure")

	// ErrInvalidParameter is a client error on a single-country or single-part
	// request.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// MalformedRecordError describes which required fields a record lacks.
type MalformedRecordError struct {
	Index  int
	Name   string
	Fields []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d (%q): missing %s", e.Index, e.Name, strings.Join(e.Fields, ", "))
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// InvalidParameterError echoes the offending request parameter.
type InvalidParameterError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// StreamError wraps a parse failure with the position reached.
type StreamError struct {
	Index int
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after record %d: %v", e.Index, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *StreamError) Unwrap() []error { return []error{ErrStreamFailure, e.Err} }
