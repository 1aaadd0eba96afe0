// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test unless err carries oops metadata and returns
// the outermost oops error of the chain.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error with the given code,
// e.g. CONFIG_INVALID or RELAY_PUBLISH_FAILED. oops reports the code of the
// deepest oops error in the chain.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	oopsErr := requireOops(t, err)
	assert.Equal(t, code, oopsErr.Code(), "error code of %q", err.Error())
}

// AssertErrorContext asserts that err carries key in its oops context with
// the given value. Context is merged across the whole chain.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	got, ok := ctx[key]
	if !assert.True(t, ok, "context key %q missing from %v", key, ctx) {
		return
	}
	assert.Equal(t, value, got, "context key %q", key)
}

// AssertErrorContextKeys asserts that err carries every key in its oops
// context, whatever the values. Use it for values such as addresses or
// durations that a test cannot predict.
func AssertErrorContextKeys(t testing.TB, err error, keys ...string) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	for _, key := range keys {
		assert.Contains(t, ctx, key, "context key %q", key)
	}
}
