package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/ainotes/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername はユーザー名でアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.Identity, error) {
	var (
		identity = &model.Identity{}
		roles    string
		billing  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, roles, billing_customer_id, token_epoch, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&identity.ID, &identity.Email, &identity.Username, &identity.PasswordHash,
		&roles, &billing, &identity.TokenEpoch, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	identity.Roles = model.ParseRoles(roles)
	if billing.Valid {
		identity.BillingCustomerID = &billing.String
	}

	return identity, nil
}

// Insert はアカウントを作成する。
func (r *PostgresUserRepo) Insert(ctx context.Context, identity *model.Identity) error {
	var billing sql.NullString
	if identity.BillingCustomerID != nil {
		billing = sql.NullString{String: *identity.BillingCustomerID, Valid: *identity.BillingCustomerID != ""}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, roles, billing_customer_id, token_epoch, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		identity.ID, identity.Email, identity.Username, identity.PasswordHash,
		identity.Roles.String(), billing, identity.TokenEpoch, identity.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdatePasswordHash はパスワードハッシュを更新し、トークンエポックを進める。
// 更新とエポック加算は1文で行う。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, username, hash string) (int, error) {
	var epoch int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET password_hash = $2, token_epoch = token_epoch + 1, updated_at = now()
		 WHERE username = $1
		 RETURNING token_epoch`,
		username, hash,
	).Scan(&epoch)

	if err == sql.ErrNoRows {
		return 0, model.ErrInvalidAccount
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update password hash: %w", err)
	}
	return epoch, nil
}

// Delete はアカウントを削除する。
func (r *PostgresUserRepo) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = $1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrInvalidAccount
	}
	return nil
}

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
