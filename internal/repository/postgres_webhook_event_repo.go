package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ainotes/internal/model"
)

// PostgresWebhookEventRepo はPostgreSQLを使用したWebhookイベント記録リポジトリ。
// ペイロード本体は保存しない。
type PostgresWebhookEventRepo struct {
	db *sql.DB
}

// NewPostgresWebhookEventRepo はPostgresWebhookEventRepoを生成する。
func NewPostgresWebhookEventRepo(db *sql.DB) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{db: db}
}

// Record は処理結果を記録する。
func (r *PostgresWebhookEventRepo) Record(ctx context.Context, event *model.WebhookEventLog) error {
	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event_type, outcome, error, delivery_count, received_at)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 ON CONFLICT (event_id) DO UPDATE
		 SET outcome = EXCLUDED.outcome,
		     error = EXCLUDED.error,
		     received_at = EXCLUDED.received_at,
		     delivery_count = webhook_events.delivery_count + 1`,
		event.EventID, event.EventType, string(event.Outcome), event.Error, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

// DeleteOlderThan はcutoffより前に受信した記録を削除する。
// 削除対象が無い場合も0件としてエラーにしない。
func (r *PostgresWebhookEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE received_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete webhook events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
