// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package control

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// Client talks to a control socket.
type Client struct {
	path string
	http *http.Client
}

// NewClient returns a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{
		path: path,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", path)
				},
			},
			Timeout: 5 * time.Second,
		},
	}
}

// Status fetches /status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Presence fetches /presence. Empty userID and connID list every online
// user; either one narrows the result and an offline match is an error.
func (c *Client) Presence(ctx context.Context, userID, connID string) (*PresenceResponse, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user", userID)
	}
	if connID != "" {
		query.Set("conn", connID)
	}
	path := "/presence"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp PresenceResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown requests a graceful shutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	var resp ShutdownResponse
	return c.do(ctx, http.MethodPost, "/shutdown", &resp)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://control"+path, http.NoBody)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return oops.With("socket", c.path).Wrapf(err, "control request %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return oops.With("socket", c.path).With("status", resp.StatusCode).
			Errorf("control request %s failed: %s", path, body.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.With("socket", c.path).Wrapf(err, "decode %s response", path)
	}
	return nil
}
