// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect opens a client for url (redis:// or rediss://) and waits until
// the server answers PING, retrying a few times while it starts up.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code(CodeConnectFailed).Wrapf(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)

	b := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, oops.Code(CodeConnectFailed).
			With("addr", opts.Addr).
			Wrapf(err, "connect to redis")
	}
	return rdb, nil
}
