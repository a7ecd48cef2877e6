package gocanapi

import (
	"errors"
	"fmt"
)

// Error is a driver status code with a human readable description. All
// sentinel errors below are of this type so the raw code survives the
// trip through the session layer.
type Error struct {
	Code        Status
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Description, int(e.Code))
}

var (
	ErrBusOff         = &Error{StatusBusOff, "bus off status"}
	ErrErrorWarning   = &Error{StatusErrorWarning, "error warning status"}
	ErrBusError       = &Error{StatusBusError, "bus error"}
	ErrAlreadyStarted = &Error{StatusAlreadyStarted, "controller already started"}
	ErrNotStarted     = &Error{StatusNotStarted, "controller not started"}
	ErrMessageLost    = &Error{StatusMessageLost, "message lost"}
	ErrTxBusy         = &Error{StatusTxBusy, "transmitter busy"}
	ErrRxEmpty        = &Error{StatusRxEmpty, "receiver empty"}
	ErrErrorFrame     = &Error{StatusErrorFrame, "error frame received"}
	ErrTimeout        = &Error{StatusTimeout, "timed out"}
	ErrResource       = &Error{StatusResource, "resource allocation failed"}
	ErrInvalidBitrate = &Error{StatusBitrate, "illegal bitrate"}
	ErrInvalidHandle  = &Error{StatusHandle, "illegal handle"}
	ErrIllegalParam   = &Error{StatusIllegalParam, "illegal parameter"}
	ErrNullPointer    = &Error{StatusNullPointer, "null pointer assignment"}
	ErrNotInitialized = &Error{StatusNotInitialized, "not initialized"}
	ErrAlreadyInit    = &Error{StatusAlreadyInit, "already initialized"}
	ErrNotSupported   = &Error{StatusNotSupported, "not supported"}
	ErrFatal          = &Error{StatusFatal, "fatal error"}
)

var errMap = map[Status]*Error{
	StatusBusOff:         ErrBusOff,
	StatusErrorWarning:   ErrErrorWarning,
	StatusBusError:       ErrBusError,
	StatusAlreadyStarted: ErrAlreadyStarted,
	StatusNotStarted:     ErrNotStarted,
	StatusMessageLost:    ErrMessageLost,
	StatusTxBusy:         ErrTxBusy,
	StatusRxEmpty:        ErrRxEmpty,
	StatusErrorFrame:     ErrErrorFrame,
	StatusTimeout:        ErrTimeout,
	StatusResource:       ErrResource,
	StatusBitrate:        ErrInvalidBitrate,
	StatusHandle:         ErrInvalidHandle,
	StatusIllegalParam:   ErrIllegalParam,
	StatusNullPointer:    ErrNullPointer,
	StatusNotInitialized: ErrNotInitialized,
	StatusAlreadyInit:    ErrAlreadyInit,
	StatusNotSupported:   ErrNotSupported,
	StatusFatal:          ErrFatal,
}

// NewError translates a raw driver status code into an error. Zero and
// positive codes yield nil, unknown negative codes a vendor specific
// error that still carries the code.
func NewError[T ~int | ~int32 | ~int64](code T) error {
	s := Status(code)
	if s >= 0 {
		return nil
	}
	if err, found := errMap[s]; found {
		return err
	}
	return &Error{Code: s, Description: "vendor specific error"}
}

// StatusOf extracts the raw status code from an error. A nil error is
// StatusOK, errors from outside the driver surface map to StatusFatal.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return StatusFatal
}

// IsRxEmpty reports whether err means no frame arrived within the
// receive window, a normal outcome rather than a fault.
func IsRxEmpty(err error) bool {
	return errors.Is(err, ErrRxEmpty)
}
