// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package auth

import (
	"context"
)

// Verifier resolves a credential to the user id it was issued for.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, credential string) (string, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, credential string) (string, error) {
	return f(ctx, credential)
}
