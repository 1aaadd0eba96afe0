// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package auth resolves the opaque credential presented at connection time
// to a user id.
//
// The socket layer depends only on the Verifier interface. JWTVerifier is
// the production implementation: it accepts HMAC-signed tokens issued by the
// ChirpX API and reads the user id from the "id" claim, falling back to the
// standard "sub" claim.
//
// Verification errors carry oops codes:
//   - AUTH_MISSING_CREDENTIAL - no credential was presented
//   - AUTH_INVALID_CREDENTIAL - malformed, expired or wrongly signed
//   - AUTH_VERIFIER_UNAVAILABLE - verification could not complete
package auth
