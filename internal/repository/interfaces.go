// Package repository はデータ永続化のインターフェースを定義する。
//
// 更新・削除で対象行が0件だった場合は「存在しない」ドメインエラーとして返し、
// 呼び出し側で握りつぶさない。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/ainotes/internal/model"
)

// UserRepository はアカウント（Identity）の永続化インターフェース。
type UserRepository interface {
	// FindByUsername はユーザー名でアカウントを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Identity, error)

	// Insert はアカウントを作成する。
	// ユーザー名が重複する場合は model.ErrUsernameTaken を返す。
	Insert(ctx context.Context, identity *model.Identity) error

	// UpdatePasswordHash はパスワードハッシュを更新し、トークンエポックを1つ進める。
	// 更新後のエポックを返す。対象が存在しない場合は model.ErrInvalidAccount を返す。
	UpdatePasswordHash(ctx context.Context, username, hash string) (int, error)

	// Delete はアカウントを削除する。対象が存在しない場合は model.ErrInvalidAccount を返す。
	Delete(ctx context.Context, username string) error
}

// SubscriptionRepository はサブスクリプションのローカルミラーの永続化インターフェース。
type SubscriptionRepository interface {
	// InsertSubscription はサブスクリプションを作成する。
	// 同じ (customer, subscription) の組が存在する場合は model.ErrDuplicateSubscription を返す。
	InsertSubscription(ctx context.Context, record *model.SubscriptionRecord) error

	// UpdateSubscriptionStatus は (customer, subscription) に一致する行の状態を更新する。
	// 一致する行が無い場合は model.ErrRecordNotFound を返す。
	UpdateSubscriptionStatus(ctx context.Context, customerID, subscriptionID string, status model.SubscriptionStatus) error

	// FindSubscriptionsByUsername はユーザーの決済顧客IDに紐づくサブスクリプションを作成日時順に返す。
	FindSubscriptionsByUsername(ctx context.Context, username string) ([]*model.SubscriptionRecord, error)
}

// WebhookEventRepository は検証済みWebhookイベントの処理記録の永続化インターフェース。
type WebhookEventRepository interface {
	// Record は処理結果を記録する。同じイベントIDの再配信は上書きし配信回数を加算する。
	Record(ctx context.Context, event *model.WebhookEventLog) error

	// DeleteOlderThan はcutoffより前に受信した記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
