// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 失効したパスワード再設定トークンを日次バッチで削除し、
// プロセス内のユーザーキャッシュから期限切れエントリを定期的に取り除く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredTokenDeleter は失効したパスワード再設定トークンを削除する。
// repository.PasswordResetRepositoryが実装する。
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CachePurger は期限切れのキャッシュエントリを削除する。auth.MemoryIdentityCacheが実装する。
type CachePurger interface {
	Purge() int
}

// Metrics はクリーンアップの結果を記録する。
type Metrics interface {
	RecordCleanup(deleted int64, duration time.Duration)
}

// CleanupJob は期限切れデータの削除ジョブ。冪等な削除処理を保証する。
type CleanupJob struct {
	tokens  ExpiredTokenDeleter
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time

	// Interval はトークン削除の実行間隔（デフォルト: 24時間）。
	Interval time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilでもよい。
func NewCleanupJob(tokens ExpiredTokenDeleter, logger *slog.Logger, metrics Metrics) *CleanupJob {
	return &CleanupJob{
		tokens:   tokens,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		Interval: 24 * time.Hour,
	}
}

// Run は現在時刻より前に失効したパスワード再設定トークンを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.tokens.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	if j.metrics != nil {
		j.metrics.RecordCleanup(deletedCount, duration)
	}
	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降Intervalごとに実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// PurgeCache はintervalごとにキャッシュの期限切れエントリを削除する。ctxがキャンセルされるまでブロックする。
func PurgeCache(ctx context.Context, cache CachePurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Purge(); n > 0 {
				logger.Debug("identity cache purged", slog.Int("purged", n))
			}
		}
	}
}
