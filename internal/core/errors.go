// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"github.com/samber/oops"
)

// Error codes for core failures.
const (
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeEncodeFailed   = "ENCODE_FAILED"

	CodeInvalidConnectionID = "CONNECTION_ID_INVALID"
)

// ErrUnknownEvent creates an error for an event name outside the catalog.
func ErrUnknownEvent(name EventName) error {
	return oops.Code(CodeUnknownEvent).
		With("event", string(name)).
		Errorf("unknown event: %s", name)
}

// ErrInvalidPayload creates an error for a payload that does not match its
// event's schema.
func ErrInvalidPayload(name EventName, reason string) error {
	return oops.Code(CodeInvalidPayload).
		With("event", string(name)).
		With("reason", reason).
		Errorf("invalid %s payload: %s", name, reason)
}
