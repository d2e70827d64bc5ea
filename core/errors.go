package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDevice marks microphone/speaker failures. It is the only error the
	// pipeline surfaces to its caller.
	ErrDevice = errors.New("audio device unavailable")
	// ErrNotAvailable is returned when every transcription provider failed or
	// returned empty text.
	ErrNotAvailable = errors.New("transcription not available")
	// ErrEmptyResult marks a provider answer that was blank after trimming.
	ErrEmptyResult = errors.New("empty result")
	// ErrMalformedMessage marks a data-channel payload that could not be decoded.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMessage marks a well-formed payload of a type this pipeline does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrSessionRunning is returned when settings are changed on a running session.
	ErrSessionRunning = errors.New("session is running")
)

// DeviceError wraps a failure to open or read a local audio device.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Device, ErrDevice, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{ErrDevice, e.Err}
}

// NewDeviceError wraps err as a DeviceError for the named device.
func NewDeviceError(device string, err error) error {
	return &DeviceError{Device: device, Err: err}
}

// ProviderError records a failed call to an external provider. It never leaves
// the pipeline; stages log it and fall through or degrade.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the provider call ran out of time.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewProviderError wraps err for the named provider and operation.
func NewProviderError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsProviderTimeout reports whether err is a ProviderError caused by a timeout.
func IsProviderTimeout(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Timeout()
}
