// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"github.com/samber/oops"
)

// Error codes for the socket server.
const (
	CodeEmitInvalidRequest = "EMIT_INVALID_REQUEST"
	CodeServerConfig       = "SOCKET_SERVER_CONFIG"
	CodeShutdownTimeout    = "SOCKET_SHUTDOWN_TIMEOUT"
)

// ErrInvalidEmitRequest creates an error for a rejected emit request.
// cause may be nil.
func ErrInvalidEmitRequest(reason string, cause error) error {
	b := oops.Code(CodeEmitInvalidRequest).With("reason", reason)
	if cause == nil {
		return b.Errorf("invalid emit request: %s", reason)
	}
	return b.Wrapf(cause, "invalid emit request: %s", reason)
}

func errMissingDependency(name string) error {
	return oops.Code(CodeServerConfig).
		With("dependency", name).
		Errorf("socket server requires %s", name)
}
