package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ainotes/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// InsertSubscription はサブスクリプションを作成する。
// (customer_id, subscription_id) の一意制約に違反した場合は重複エラーを返す。
func (r *PostgresSubscriptionRepo) InsertSubscription(ctx context.Context, rec *model.SubscriptionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (customer_id, subscription_id, status, start_date, created, current_period_start, current_period_end, price_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.CustomerID, rec.SubscriptionID, string(rec.Status),
		nullTime(rec.StartDate), nullTime(rec.Created),
		nullTime(rec.CurrentPeriodStart), nullTime(rec.CurrentPeriodEnd),
		rec.PriceID,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus は一致する行の状態を更新する。
// 同じ値での再更新も1行として数えられるため、再配信は成功扱いになる。
func (r *PostgresSubscriptionRepo) UpdateSubscriptionStatus(ctx context.Context, customerID, subscriptionID string, status model.SubscriptionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $3, updated_at = now()
		 WHERE customer_id = $1 AND subscription_id = $2`,
		customerID, subscriptionID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrRecordNotFound
	}
	return nil
}

// FindSubscriptionsByUsername はユーザーに紐づくサブスクリプションを返す。
func (r *PostgresSubscriptionRepo) FindSubscriptionsByUsername(ctx context.Context, username string) ([]*model.SubscriptionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.customer_id, s.subscription_id, s.status, s.start_date, s.created,
		        s.current_period_start, s.current_period_end, s.price_id
		 FROM users u
		 JOIN subscriptions s ON s.customer_id = u.billing_customer_id
		 WHERE u.username = $1
		 ORDER BY s.created ASC NULLS LAST, s.subscription_id ASC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var records []*model.SubscriptionRecord
	for rows.Next() {
		var (
			rec                                          = &model.SubscriptionRecord{}
			status                                       string
			startDate, created, periodStart, periodEnd sql.NullTime
		)
		if err := rows.Scan(&rec.CustomerID, &rec.SubscriptionID, &status, &startDate, &created,
			&periodStart, &periodEnd, &rec.PriceID); err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		rec.Status = model.SubscriptionStatus(status)
		rec.StartDate = startDate.Time
		rec.Created = created.Time
		rec.CurrentPeriodStart = periodStart.Time
		rec.CurrentPeriodEnd = periodEnd.Time
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return records, nil
}

// nullTime はゼロ値の時刻をNULLとして渡す。
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
