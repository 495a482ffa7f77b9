// Package cleanup はWebhookイベント処理記録の自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した記録を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/repository"
)

// DefaultRetentionDays は処理記録のデフォルト保持日数。
const DefaultRetentionDays = 30

// CleanupJob は保持期間を超過したWebhookイベント記録の自動削除ジョブ。
// 冪等であり、削除対象が無い場合もエラーにしない。
type CleanupJob struct {
	events        repository.WebhookEventRepository
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	now           func() time.Time
	RetentionDays int // 記録の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(events repository.WebhookEventRepository, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		events:        events,
		logger:        logger,
		metrics:       mc,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は受信日時がRetentionDays日前より古い記録を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("Webhookイベント記録の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("webhook event cleanup failed: %w", err)
	}
	j.metrics.RecordWebhookEventsPruned(deleted)

	j.logger.Info("Webhookイベント記録のクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はinterval間隔でRunを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。個々の失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
