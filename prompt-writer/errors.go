package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure once, at the point it is
// detected, so no layer has to re-derive it from message text.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindTimeout
	KindTransient
	KindMalformed
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return "fatal"
	}
}

// PipelineError tags a failure with its kind and the call-site label that
// produced it. Timeout messages end in "_timeout" and JSON-repair
// exhaustion surfaces as "json_repair_failed", which the HTTP boundary
// maps to 504 and 502 respectively.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return e.Op + "_timeout"
	case KindMalformed:
		if e.Err != nil {
			return fmt.Sprintf("json_repair_failed: %v", e.Err)
		}
		return "json_repair_failed"
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return e.Op
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the resilience layer may retry this failure.
func (e *PipelineError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransient
}

// errKind extracts the kind from any error, defaulting to fatal for
// untagged errors.
func errKind(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindFatal
}

func validationError(msg string) *PipelineError {
	return &PipelineError{Kind: KindValidation, Op: msg}
}
