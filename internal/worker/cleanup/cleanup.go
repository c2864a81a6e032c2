// Package cleanup は有効期限を過ぎた失効記録の自動削除ジョブを提供する。
// 失効記録はトークンの有効期限まで保持すれば十分であり、
// それ以降はGateの有効期限検証だけで拒否される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は期限切れ失効記録の削除インターフェース。
// repository.RevocationRepositoryの部分集合として定義する。
type Purger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Recorder は削除件数の記録インターフェース。
type Recorder interface {
	RecordRevocationsCleaned(count int64)
}

// CleanupJob は期限切れ失効記録の削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	store    Purger
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(store Purger, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		store:    store,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run は現在時刻より前に有効期限を迎えた失効記録を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.store.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("失効記録クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("失効記録クリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordRevocationsCleaned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("失効記録クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降interval間隔でRunを繰り返す。
// ctxがキャンセルされるまでブロックする。失敗はログに残して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("失効記録クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
