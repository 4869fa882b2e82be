package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFraming marks a span that failed COBS decoding or was too
	// short for its header. The framer drops such spans and resynchronizes.
	ErrMalformedFraming = errors.New("airsniff: malformed framing")

	// ErrCommandTimeout is matched by *CommandTimeoutError.
	ErrCommandTimeout = errors.New("airsniff: command timed out")

	// ErrCommandRejected is matched by *CommandRejectedError.
	ErrCommandRejected = errors.New("airsniff: command rejected")

	// ErrTransportFailure means the byte stream broke; the session must be
	// closed and reopened.
	ErrTransportFailure = errors.New("airsniff: transport failure")

	ErrPayloadTooLarge = errors.New("airsniff: payload too large")
	ErrInvalidChannel  = errors.New("airsniff: invalid channel")
	ErrInvalidFilter   = errors.New("airsniff: invalid frame filter")
)

// ErrorCode is the firmware's reason for rejecting a command.
type ErrorCode uint8

const (
	ErrCodeUnknownCommand ErrorCode = 0x01
	ErrCodeInvalidChannel ErrorCode = 0x02
	ErrCodeRadioFailure   ErrorCode = 0x03
	ErrCodeScanActive     ErrorCode = 0x04
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnknownCommand:
		return "unknown command"
	case ErrCodeInvalidChannel:
		return "invalid channel"
	case ErrCodeRadioFailure:
		return "radio failure"
	case ErrCodeScanActive:
		return "scan already active"
	default:
		return fmt.Sprintf("0x%02x", uint8(c))
	}
}

// CommandTimeoutError is returned when no response arrives in time.
type CommandTimeoutError struct {
	Command MessageType
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %s (0x%02x) timed out", e.Command, uint8(e.Command))
}

func (e *CommandTimeoutError) Is(target error) bool { return target == ErrCommandTimeout }

// CommandRejectedError carries a structured error response.
type CommandRejectedError struct {
	Command MessageType
	Code    ErrorCode
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command 0x%02x failed: %s", uint8(e.Command), e.Code)
}

func (e *CommandRejectedError) Is(target error) bool { return target == ErrCommandRejected }

// IsCommandRejected reports whether err carries the given firmware code.
func IsCommandRejected(err error, code ErrorCode) bool {
	var rej *CommandRejectedError
	return errors.As(err, &rej) && rej.Code == code
}
