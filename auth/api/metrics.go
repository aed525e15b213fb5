// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/voxlink/warden/auth"
)

var _ auth.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     auth.Service
}

// MetricsMiddleware instruments the token manager by tracking request
// count and latency.
func MetricsMiddleware(svc auth.Service, counter metrics.Counter, latency metrics.Histogram) auth.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (ms *metricsMiddleware) Issue(ctx context.Context, backendName string, req auth.TokenRequest) (auth.Token, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "issue").Add(1)
		ms.latency.With("method", "issue").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return ms.svc.Issue(ctx, backendName, req)
}

func (ms *metricsMiddleware) Revoke(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		ms.counter.With("method", "revoke").Add(1)
		ms.latency.With("method", "revoke").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return ms.svc.Revoke(ctx, id)
}

func (ms *metricsMiddleware) Retrieve(ctx context.Context, id string) (auth.Token, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "retrieve").Add(1)
		ms.latency.With("method", "retrieve").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return ms.svc.Retrieve(ctx, id)
}

func (ms *metricsMiddleware) Validate(ctx context.Context, id, requiredACL string) (bool, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "validate").Add(1)
		ms.latency.With("method", "validate").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return ms.svc.Validate(ctx, id, requiredACL)
}

func (ms *metricsMiddleware) UpdateUserEmails(ctx context.Context, userID string, desired []auth.Email, asAdmin bool) ([]auth.Email, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "update_user_emails").Add(1)
		ms.latency.With("method", "update_user_emails").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return ms.svc.UpdateUserEmails(ctx, userID, desired, asAdmin)
}
