// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"encoding/json"

	"github.com/samber/oops"
)

// Frame is the wire shape of every socket message in both directions.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame serializes ev as a Frame.
func EncodeFrame(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, oops.Code(CodeEncodeFailed).
			With("event", string(ev.Name())).
			Wrapf(err, "encode %s", ev.Name())
	}
	b, err := json.Marshal(Frame{Event: ev.Name(), Data: data})
	if err != nil {
		return nil, oops.Code(CodeEncodeFailed).
			With("event", string(ev.Name())).
			Wrapf(err, "encode %s frame", ev.Name())
	}
	return b, nil
}

// Envelope is an encoded event addressed to a room. The frame is shared
// by every connection in the room and must not be mutated.
type Envelope struct {
	Room  string
	Event EventName
	Frame []byte
}

// RoomName returns the own-user room for userID.
func RoomName(userID string) string {
	return "user:" + userID
}
