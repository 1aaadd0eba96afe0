// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID. Connection handles and node ids are ULIDs,
// so handles issued by one node sort by connect time.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseConnectionID parses a connection handle as reported in the connected
// acknowledgement or by the control socket. Surrounding whitespace is
// ignored and the case-insensitive Crockford alphabet is accepted.
func ParseConnectionID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(strings.TrimSpace(s))
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidConnectionID).
			With("connection_id", s).
			Wrapf(err, "invalid connection id")
	}
	return id, nil
}
