// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package auth

import (
	"github.com/samber/oops"
)

// Error codes for credential verification.
const (
	CodeMissingCredential   = "AUTH_MISSING_CREDENTIAL"
	CodeInvalidCredential   = "AUTH_INVALID_CREDENTIAL"
	CodeVerifierUnavailable = "AUTH_VERIFIER_UNAVAILABLE"
)

// ErrMissingCredential creates an error for a handshake without a credential.
func ErrMissingCredential() error {
	return oops.Code(CodeMissingCredential).Errorf("no credential presented")
}

// ErrInvalidCredential creates an error for a credential that does not
// resolve to a user. cause may be nil.
func ErrInvalidCredential(reason string, cause error) error {
	b := oops.Code(CodeInvalidCredential).With("reason", reason)
	if cause == nil {
		return b.Errorf("invalid credential: %s", reason)
	}
	return b.Wrapf(cause, "invalid credential: %s", reason)
}

// ErrVerifierUnavailable creates an error for a verification that could not
// run to completion.
func ErrVerifierUnavailable(cause error) error {
	return oops.Code(CodeVerifierUnavailable).Wrapf(cause, "credential verifier unavailable")
}
