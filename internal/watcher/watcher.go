// Package watcher は指定地点周辺の猫の目撃を定期的に監視する。
// ティッカーによる周期ポーリングと、連続エラー時の指数バックオフを含む。
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/nekomap/internal/model"
)

// NearbyLister は周辺の猫の取得インターフェース。
type NearbyLister interface {
	// Nearby は指定座標から半径radius(m)以内の猫を取得する。
	Nearby(ctx context.Context, lat, lng, radius float64, limit int) ([]model.Cat, error)
}

const (
	// initialBackoff は連続エラー時の初回スキップ遅延。
	initialBackoff = 30 * time.Second
	// maxBackoff は連続エラー時の最大スキップ遅延。
	maxBackoff = 30 * time.Minute
	// defaultLimit は1回のポーリングで取得する最大件数。
	defaultLimit = 100
)

// Watcher は指定地点周辺の猫の目撃を監視する。
// 周期ごとにNearbyを呼び出し、前回から新しく目撃された猫をログに出力する。
type Watcher struct {
	lister   NearbyLister
	logger   *slog.Logger
	center   model.Coordinates
	radius   float64
	interval time.Duration

	// 前回サイクルで観測した猫ID → LastSeen。
	// 新規IDまたはLastSeenの前進を「新しい目撃」として扱う。
	seen map[string]time.Time

	consecutiveErrors int
	nextAllowedAt     time.Time
}

// New はWatcherの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値5分を使用する。
func New(lister NearbyLister, logger *slog.Logger, center model.Coordinates, radius float64, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Watcher{
		lister:   lister,
		logger:   logger,
		center:   center,
		radius:   radius,
		interval: interval,
		seen:     make(map[string]time.Time),
	}
}

// Start はティッカーで監視を起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("監視を開始しました",
		slog.Float64("lat", w.center.Lat),
		slog.Float64("lng", w.center.Lng),
		slog.Float64("radius_m", w.radius),
		slog.Duration("interval", w.interval),
	)

	// 起動直後に1回実行
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("監視を停止しました")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce は1回のポーリングサイクルを実行し、新しい目撃の件数を返す。
// 連続エラーによるバックオフ期間中はポーリングをスキップする。
func (w *Watcher) RunOnce(ctx context.Context) int {
	now := time.Now()
	if now.Before(w.nextAllowedAt) {
		w.logger.Info("バックオフ期間中のためポーリングをスキップします",
			slog.Time("next_allowed_at", w.nextAllowedAt),
		)
		return 0
	}

	cats, err := w.lister.Nearby(ctx, w.center.Lat, w.center.Lng, w.radius, defaultLimit)
	if err != nil {
		w.applyBackoff(err)
		return 0
	}

	w.consecutiveErrors = 0
	w.nextAllowedAt = time.Time{}

	fresh := 0
	for _, cat := range cats {
		last, known := w.seen[cat.ID]
		if known && !cat.LastSeen.After(last) {
			continue
		}
		fresh++
		w.seen[cat.ID] = cat.LastSeen
		w.logger.Info("新しい目撃がありました",
			slog.String("cat_id", cat.ID),
			slog.String("name", cat.Name),
			slog.String("location", cat.Location),
			slog.Time("last_seen", cat.LastSeen),
			slog.Int("activity_score", cat.ActivityScore()),
		)
	}

	w.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("cat_count", len(cats)),
		slog.Int("fresh_count", fresh),
	)
	return fresh
}

// applyBackoff は連続エラー回数をインクリメントし、次回ポーリング可能時刻を設定する。
func (w *Watcher) applyBackoff(err error) {
	w.consecutiveErrors++
	delay := CalculateBackoff(w.consecutiveErrors - 1)
	w.nextAllowedAt = time.Now().Add(delay)
	w.logger.Error("周辺の猫の取得に失敗しました",
		slog.String("error", err.Error()),
		slog.Int("consecutive_errors", w.consecutiveErrors),
		slog.Duration("backoff", delay),
	)
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大30分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
