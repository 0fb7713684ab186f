package ocr

import (
	"errors"
	"fmt"
)

// ErrNoText is the cause of a KindEmpty failure.
var ErrNoText = errors.New("no text found in image")

// ErrClientPanic wraps a panic recovered from the provider client.
var ErrClientPanic = errors.New("ai client panicked")

type Kind int

const (
	// KindEncode: the image could not be turned into a JPEG payload.
	KindEncode Kind = iota + 1
	// KindRemote: the provider call failed (network, auth, quota, server).
	KindRemote
	// KindEmpty: the provider answered with blank text.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindEncode:
		return "encode"
	case KindRemote:
		return "remote"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Error is the single failure type returned by Extract.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("error during OCR: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of an extraction error, or 0 if err is not one.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}
