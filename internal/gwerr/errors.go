// Package gwerr defines the gateway's error taxonomy as sentinel values
// rather than an exception hierarchy, so callers can classify failures
// with errors.Is and decide on local recovery vs. teardown.
package gwerr

import "errors"

// Components wrap one of these with context via
// fmt.Errorf("...: %w", Kind) so callers can still errors.Is() against it.
var (
	// ErrFrame covers malformed IP-T / M-Bus headers. The line or session
	// that produced it must be torn down.
	ErrFrame = errors.New("gwerr: malformed frame")

	// ErrChecksum covers SML CRC16 or M-Bus arithmetic checksum mismatches.
	// The offending message is dropped; the line continues.
	ErrChecksum = errors.New("gwerr: checksum mismatch")

	// ErrAuth covers a refused login. The session moves to SHUTDOWN.
	ErrAuth = errors.New("gwerr: authentication refused")

	// ErrProtocolViolation covers an unexpected command for the session's
	// current state. The session is closed and an op-log entry raised.
	ErrProtocolViolation = errors.New("gwerr: protocol violation")

	// ErrResourceNotFound covers an unknown target, channel or device.
	ErrResourceNotFound = errors.New("gwerr: resource not found")

	// ErrBusy covers a line or target already in use; callers may retry.
	ErrBusy = errors.New("gwerr: resource busy")

	// ErrIO covers socket/file errors, retriable at the supervisor level.
	ErrIO = errors.New("gwerr: io error")

	// ErrConfig covers a bad OBIS code, bad key length or similar
	// configuration-call failure. Live sessions are left undisturbed.
	ErrConfig = errors.New("gwerr: invalid configuration")

	// ErrDecrypt covers a wrong AES key or missing 2F 2F marker.
	ErrDecrypt = errors.New("gwerr: decrypt failed")
)
