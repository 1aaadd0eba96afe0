// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/chirpx/realtime/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("EMIT_INVALID_REQUEST").Errorf("userIds is required")
	errutil.AssertErrorCode(t, err, "EMIT_INVALID_REQUEST")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("event", "new-tweet").Errorf("bad payload")
	errutil.AssertErrorContext(t, err, "event", "new-tweet")
}

func TestAssertErrorContextKeys_PresentKeys(t *testing.T) {
	err := oops.Code("RELAY_CONNECT_FAILED").
		With("addr", "127.0.0.1:6379").
		With("attempts", 5).
		Errorf("connect to redis")
	errutil.AssertErrorContextKeys(t, err, "addr", "attempts")
}

func TestAssertErrorCode_DeepestCodeWins(t *testing.T) {
	inner := oops.Code("UNKNOWN_EVENT").With("event", "poke").Errorf("unknown event: poke")
	err := oops.Code("EMIT_INVALID_REQUEST").With("reason", "event rejected").Wrapf(inner, "invalid emit request")
	errutil.AssertErrorCode(t, err, "UNKNOWN_EVENT")
	errutil.AssertErrorContext(t, err, "reason", "event rejected")
	errutil.AssertErrorContext(t, err, "event", "poke")
}
