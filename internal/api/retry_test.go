package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

// retryableErr はテスト用のリトライ対象エラーを生成する。
func retryableErr(msg string) error {
	return newNetworkError(errors.New(msg))
}

func TestRetry_AlwaysFails_InvokedExactlyMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	lastErr := retryableErr("connection refused")

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return lastErr
	})

	if calls != 3 {
		t.Errorf("呼び出し回数 = %d, want 3（初回を含む最大試行回数）", calls)
	}
	// 最終試行のエラーはラップせずそのまま返される
	if !errors.Is(err, lastErr) {
		t.Errorf("最後のエラーが変更されずに返るべき: %v", err)
	}
}

func TestRetry_SucceedsOnSecondAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return retryableErr("一時的な失敗")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("成功するべき: %v", err)
	}
	if calls != 2 {
		t.Errorf("2回目で成功した場合それ以上呼ばれてはならない: %d回", calls)
	}
}

func TestRetry_ImmediateSuccess(t *testing.T) {
	policy := DefaultRetryPolicy()

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil || calls != 1 {
		t.Errorf("即時成功は1回のみ呼ばれるべき: calls=%d, err=%v", calls, err)
	}
}

func TestRetry_TerminalErrorNotRetried(t *testing.T) {
	// 4xx検証エラーはリプレイしても成功しないためリトライしない
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	terminal := &Error{Kind: ErrorKindValidation, Status: 422, Message: "name required"}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return terminal
	})

	if calls != 1 {
		t.Errorf("Terminalエラーは1回で打ち切るべき: %d回", calls)
	}
	if !errors.Is(err, terminal) {
		t.Errorf("元のエラーがそのまま返るべき: %v", err)
	}
}

func TestRetry_PlainErrorNotRetried(t *testing.T) {
	// アクセス層のError以外（デコード失敗等）はリトライ対象外
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("json decode failed")
	})

	if calls != 1 {
		t.Errorf("分類されないエラーはリトライしないべき: %d回", calls)
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(ctx context.Context) error {
			calls++
			return retryableErr("timeout")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("エラーが返るべき")
		}
		if calls != 1 {
			t.Errorf("キャンセル後に再試行してはならない: %d回", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("バックオフがキャンセルに応答しない")
	}
}

func TestRetry_OnRetryHook(t *testing.T) {
	retries := 0
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry:     func(attempt int) { retries++ },
	}

	policy.Do(context.Background(), func(ctx context.Context) error {
		return retryableErr("fail")
	})

	// 3回試行 = 2回のリトライ
	if retries != 2 {
		t.Errorf("OnRetryは2回呼ばれるべき: %d回", retries)
	}
}

func TestBackoff_Exponential(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}

	for _, tc := range cases {
		if got := policy.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_Capped(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second}
	if got := policy.Backoff(100); got != maxBackoffDelay {
		t.Errorf("バックオフは上限%vを超えてはならない: %v", maxBackoffDelay, got)
	}
}
