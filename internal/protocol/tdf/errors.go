package tdf

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind        = errors.New("tdf: unknown kind")
	ErrTruncated          = errors.New("tdf: truncated data")
	ErrMissingTdf         = errors.New("tdf: missing tdf")
	ErrKindMismatch       = errors.New("tdf: kind mismatch")
	ErrHeterogeneousList  = errors.New("tdf: list element kind differs from list kind")
	ErrInvalidUnion       = errors.New("tdf: union selector set without a value")
	ErrMaxDepthExceeded   = errors.New("tdf: nesting depth exceeds limit")
	ErrCollectionTooLarge = errors.New("tdf: collection count exceeds limit")
	ErrNilValue           = errors.New("tdf: nil value")
)

// MissingError reports an accessor lookup for a label that is not present.
type MissingError struct {
	Label string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("tdf: missing %q", e.Label)
}

func (e *MissingError) Unwrap() error {
	return ErrMissingTdf
}

// KindMismatchError reports a label that is present with a different kind
// than the accessor asked for.
type KindMismatchError struct {
	Label string
	Want  Kind
	Got   Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("tdf: %q is %s, want %s", e.Label, e.Got, e.Want)
}

func (e *KindMismatchError) Unwrap() error {
	return ErrKindMismatch
}

// DecodeError locates a decode failure inside a content list.
type DecodeError struct {
	// Label being parsed when the failure happened, empty if the header itself
	// could not be read.
	Label string
	// Offset is the byte offset of the failure from the start of the input.
	Offset int
	// Last is the label of the last Tdf that decoded completely.
	Last string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tdf: decode %q at offset %d (last %q): %v", e.Label, e.Offset, e.Last, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
