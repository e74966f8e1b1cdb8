// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"strings"
	"time"
)

// IsSQLiteConflictError reports whether err is SQLITE_BUSY or
// "database is locked", the two concurrency errors worth retrying.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryOnConflict runs fn up to attempts times, sleeping base, 2*base, 4*base...
// between tries while fn fails with a SQLite conflict. Any other error is
// returned immediately. The returned int is the number of attempts made.
func RetryOnConflict(ctx context.Context, attempts int, base time.Duration, fn func() error) (int, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsSQLiteConflictError(err) || i == attempts-1 {
			return i + 1, err
		}

		select {
		case <-time.After(base * time.Duration(1<<i)):
		case <-ctx.Done():
			return i + 1, ctx.Err()
		}
	}
	return attempts, err
}
