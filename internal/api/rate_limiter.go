// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket with allow/reject counters
type RateLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter allows ratePerSec steady requests with the given burst.
// A non-positive rate returns nil, which allows everything.
func NewRateLimiter(ratePerSec float64, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether a request may proceed now
func (l *RateLimiter) Allow() bool {
	if l == nil {
		return true
	}
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

// Wait blocks until a request may proceed or ctx ends
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		l.rejectedCount.Add(1)
		return err
	}
	l.allowedCount.Add(1)
	return nil
}

// AllowedCount is the cumulative number of allowed requests
func (l *RateLimiter) AllowedCount() int64 {
	if l == nil {
		return 0
	}
	return l.allowedCount.Load()
}

// RejectedCount is the cumulative number of rejected requests
func (l *RateLimiter) RejectedCount() int64 {
	if l == nil {
		return 0
	}
	return l.rejectedCount.Load()
}
