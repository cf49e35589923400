package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted 表示重试预算耗尽后操作仍未成功。
var ErrRetriesExhausted = errors.New("retries exhausted")

// retryPolicy 描述一次可重试操作的预算与退避节奏。
// Retryable 为 nil 时所有错误都会消耗一次重试名额。
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// withRetry 以线性退避（BaseDelay × 已尝试次数）执行 op，
// 直到成功、遇到不可重试错误或预算耗尽。退避只阻塞当前运行。
func withRetry[T any](ctx context.Context, policy retryPolicy, op func(attempt int) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if err := sleepContext(ctx, policy.BaseDelay*time.Duration(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
