package api

import (
	"context"
	"time"
)

const (
	// defaultMaxAttempts は初回を含む最大試行回数のデフォルト値。
	defaultMaxAttempts = 3
	// defaultBaseDelay は指数バックオフの基準遅延のデフォルト値。
	defaultBaseDelay = 1 * time.Second
	// maxBackoffDelay は1回のバックオフ遅延の上限。
	maxBackoffDelay = 30 * time.Second
)

// RetryPolicy はリトライ回数とバックオフの設定を保持する。
type RetryPolicy struct {
	// MaxAttempts は初回を含む最大試行回数。
	MaxAttempts int
	// BaseDelay は指数バックオフの基準遅延。
	// n回目の失敗後の遅延は BaseDelay * 2^(n-1)。
	BaseDelay time.Duration
	// OnRetry はリトライ実行前に呼ばれるフック。メトリクス記録用。nilでもよい。
	OnRetry func(attempt int)
}

// DefaultRetryPolicy はデフォルトのリトライ設定を返す（3回試行、基準遅延1秒）。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

// Backoff はattempt回目（1始まり）の失敗後に適用する遅延を計算する。
// BaseDelay * 2^(attempt-1)。上限は30秒。
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoffDelay {
			return maxBackoffDelay
		}
	}
	return delay
}

// Do は操作を実行し、一時的な失敗に限り指数バックオフでリトライする。
// エラーはIsRetryableで分類され、Terminalなエラー（4xx検証エラー、
// デコード失敗等）は即座に返す。最終試行のエラーはラップせずそのまま返す。
// バックオフ中にコンテキストがキャンセルされた場合は最後のエラーを返す。
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && p.OnRetry != nil {
			p.OnRetry(attempt)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

// sleep はコンテキストのキャンセルに対応した待機を行う。
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
