package gateway

import (
	"errors"
	"fmt"
)

// ErrEmptyResult means the call succeeded but carried no usable payload.
var ErrEmptyResult = errors.New("gateway returned no payload")

// Op names the remote capability that failed.
type Op string

const (
	OpCompleteText     Op = "complete_text"
	OpGenerateImage    Op = "generate_image"
	OpSynthesizeSpeech Op = "synthesize_speech"
)

// Error wraps a transport, auth or provider-side failure of a remote call.
type Error struct {
	Op       Op
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as *Error unless it is nil or already an empty-result signal.
func Wrap(provider string, op Op, err error) error {
	if err == nil || errors.Is(err, ErrEmptyResult) {
		return err
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	return &Error{Op: op, Provider: provider, Err: err}
}

// IsEmpty reports whether err signals an empty result.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}
