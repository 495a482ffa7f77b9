// Package account は認証済みアカウントのパスワード変更・削除と参照を提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/password"
	"github.com/hitoshi/ainotes/internal/repository"
	"github.com/hitoshi/ainotes/internal/token"
)

// Details はアカウント情報の参照ビュー。パスワードハッシュは含めない。
type Details struct {
	Username      string
	Email         string
	Roles         []model.Role
	BillingLinked bool
	CreatedAt     time.Time
}

// Service はアカウントのライフサイクル管理のサービス層。
// 変更系の操作は呼び出し元が認証済みであっても現在のパスワードを再検証する。
type Service struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	hasher  *password.Hasher
	tokens  *token.Issuer
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	hasher *password.Hasher,
	tokens *token.Issuer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		users:   users,
		subs:    subs,
		hasher:  hasher,
		tokens:  tokens,
		metrics: mc,
	}
}

// ChangePassword は現在のパスワードを再検証した上でパスワードを変更し、
// 新しいエポックでトークンを発行する。以前に発行したトークンは解決されなくなる。
func (s *Service) ChangePassword(ctx context.Context, identity *model.Identity, oldPassword, newPassword string) (token.Token, error) {
	if oldPassword == "" || newPassword == "" {
		return token.Token{}, model.ErrEmptyField
	}
	if oldPassword == newPassword {
		return token.Token{}, model.ErrWeakPassword
	}
	if err := password.Validate(newPassword); err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", model.ErrWeakPassword, err)
	}

	if err := s.reverify(ctx, identity.Username, oldPassword); err != nil {
		return token.Token{}, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return token.Token{}, err
	}

	epoch, err := s.users.UpdatePasswordHash(ctx, identity.Username, hash)
	if err != nil {
		return token.Token{}, fmt.Errorf("failed to update password: %w", err)
	}

	tok, err := s.tokens.Issue(identity.Username, epoch)
	if err != nil {
		return token.Token{}, fmt.Errorf("failed to issue token: %w", err)
	}
	s.metrics.RecordTokenIssued(metrics.TokenReasonPasswordChange)

	slog.Info("password changed",
		slog.String("username", identity.Username),
		slog.Int("token_epoch", epoch),
	)
	return tok, nil
}

// DeleteAccount は現在のパスワードを再検証した上でアカウントを削除する。
// 削除後はそのユーザー名に対するトークンは解決されない。
// サブスクリプションのローカルミラーは決済プロバイダー側の記録として残す。
func (s *Service) DeleteAccount(ctx context.Context, identity *model.Identity, plaintext string) error {
	if plaintext == "" {
		return model.ErrEmptyField
	}

	if err := s.reverify(ctx, identity.Username, plaintext); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, identity.Username); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.Info("account deleted", slog.String("username", identity.Username))
	return nil
}

// Details はアカウント情報を返す。
func (s *Service) Details(_ context.Context, identity *model.Identity) Details {
	return Details{
		Username:      identity.Username,
		Email:         identity.Email,
		Roles:         identity.Roles.Slice(),
		BillingLinked: identity.HasBillingCustomer(),
		CreatedAt:     identity.CreatedAt,
	}
}

// PurchaseHistory はアカウントのサブスクリプション履歴を作成日時順に返す。
func (s *Service) PurchaseHistory(ctx context.Context, identity *model.Identity) ([]*model.SubscriptionRecord, error) {
	records, err := s.subs.FindSubscriptionsByUsername(ctx, identity.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}
	if records == nil {
		records = []*model.SubscriptionRecord{}
	}
	return records, nil
}

// reverify は保存済みの最新ハッシュを読み直してパスワードを照合する。
// 呼び出し元が保持するIdentityのハッシュは使わない。
func (s *Service) reverify(ctx context.Context, username, plaintext string) error {
	current, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	if current == nil {
		return model.ErrInvalidAccount
	}

	ok, err := s.hasher.Verify(plaintext, current.PasswordHash)
	if err != nil || !ok {
		slog.Warn("credential re-verification failed", slog.String("username", username))
		return model.ErrBadCredentials
	}
	return nil
}
