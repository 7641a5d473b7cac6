package models

import "time"

type RateLimitBucket struct {
	Key       string
	Count     int
	ExpiresAt time.Time
}

// RateLimitResult is the outcome of a single hit against a bucket.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}
