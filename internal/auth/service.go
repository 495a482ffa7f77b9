// Package auth はパスワードによる認証とセッショントークンからの識別解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/hitoshi/ainotes/internal/billing"
	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/password"
	"github.com/hitoshi/ainotes/internal/repository"
	"github.com/hitoshi/ainotes/internal/token"
)

// dummyPassword は存在しないユーザーへの照合に使う平文。
// 照合結果は常に破棄する。
const dummyPassword = "ainotes-timing-equalizer"

// RegisterInput はアカウント作成の入力。
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Validate は入力を検査する。空の項目は model.ErrEmptyField、
// 形式・長さの不正は model.ErrInvalidInput を返す。
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return model.ErrEmptyField
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Length(3, 255), is.Email),
		validation.Field(&in.Username, validation.Length(1, 255)),
		validation.Field(&in.Password, validation.By(func(v interface{}) error {
			return password.Validate(v.(string))
		})),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return nil
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	hasher    *password.Hasher
	tokens    *token.Issuer
	customers billing.CustomerCreator
	metrics   metrics.MetricsCollector
	dummyHash string
}

// NewService はServiceを生成する。
// 存在しないユーザーとの照合用に、起動時に1回だけダミーのハッシュを計算する。
func NewService(
	users repository.UserRepository,
	hasher *password.Hasher,
	tokens *token.Issuer,
	customers billing.CustomerCreator,
	mc metrics.MetricsCollector,
) (*Service, error) {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	if customers == nil {
		customers = billing.Disabled{}
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		customers: customers,
		metrics:   mc,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate はユーザー名とパスワードを照合しアカウントを返す。
// 存在しないユーザー名と誤ったパスワードはどちらも model.ErrBadCredentials を返す。
func (s *Service) Authenticate(ctx context.Context, username, plaintext string) (*model.Identity, error) {
	if username == "" || plaintext == "" {
		return nil, model.ErrEmptyField
	}

	identity, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		s.metrics.RecordAuthAttempt(metrics.AuthResultError)
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	if identity == nil {
		// 応答時間からユーザーの存在が推測されないよう、同じコストの照合を行う
		_, _ = s.hasher.Verify(plaintext, s.dummyHash)
		s.rejectLogin(username)
		return nil, model.ErrBadCredentials
	}

	ok, err := s.hasher.Verify(plaintext, identity.PasswordHash)
	if err != nil {
		slog.Error("stored password hash is unreadable",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		s.rejectLogin(username)
		return nil, model.ErrBadCredentials
	}
	if !ok {
		s.rejectLogin(username)
		return nil, model.ErrBadCredentials
	}

	s.metrics.RecordAuthAttempt(metrics.AuthResultSuccess)
	return identity, nil
}

// Login は認証に成功したアカウントへトークンを発行する。
func (s *Service) Login(ctx context.Context, username, plaintext string) (*model.Identity, token.Token, error) {
	identity, err := s.Authenticate(ctx, username, plaintext)
	if err != nil {
		return nil, token.Token{}, err
	}

	tok, err := s.IssueFor(identity, metrics.TokenReasonLogin)
	if err != nil {
		return nil, token.Token{}, err
	}

	slog.Info("user logged in", slog.String("username", identity.Username))
	return identity, tok, nil
}

// Resolve はトークンを検証し、対応するアカウントを再取得して返す。
// トークン不正・アカウント消失・エポック不一致はいずれも model.ErrUnauthenticated を返す。
func (s *Service) Resolve(ctx context.Context, raw string) (*model.Identity, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, model.ErrUnauthenticated
	}

	identity, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if identity.TokenEpoch != claims.Epoch {
		slog.Info("stale token rejected",
			slog.String("username", identity.Username),
			slog.Int("token_epoch", claims.Epoch),
			slog.Int("current_epoch", identity.TokenEpoch),
		)
		return nil, model.ErrUnauthenticated
	}

	return identity, nil
}

// Register はアカウントを作成し、トークンを発行する。
// 決済プロバイダーの顧客作成に失敗した場合はアカウントを作成しない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Identity, token.Token, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := in.Validate(); err != nil {
		return nil, token.Token{}, err
	}

	existing, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, token.Token{}, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, token.Token{}, model.ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, token.Token{}, err
	}

	customerID, err := s.customers.CreateCustomer(ctx, in.Email, in.Username)
	if err != nil {
		return nil, token.Token{}, fmt.Errorf("failed to create billing customer: %w", err)
	}

	identity := &model.Identity{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Roles:        model.NewRoleSet(model.RoleUser),
		CreatedAt:    time.Now(),
	}
	if customerID != "" {
		identity.BillingCustomerID = &customerID
	}

	if err := s.users.Insert(ctx, identity); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return nil, token.Token{}, err
		}
		return nil, token.Token{}, fmt.Errorf("failed to create account: %w", err)
	}

	tok, err := s.IssueFor(identity, metrics.TokenReasonRegister)
	if err != nil {
		return nil, token.Token{}, err
	}

	slog.Info("account created",
		slog.String("username", identity.Username),
		slog.Bool("billing_linked", identity.HasBillingCustomer()),
	)
	return identity, tok, nil
}

// IssueFor はアカウントの現在のエポックでトークンを発行する。
func (s *Service) IssueFor(identity *model.Identity, reason string) (token.Token, error) {
	tok, err := s.tokens.Issue(identity.Username, identity.TokenEpoch)
	if err != nil {
		return token.Token{}, fmt.Errorf("failed to issue token: %w", err)
	}
	s.metrics.RecordTokenIssued(reason)
	return tok, nil
}

func (s *Service) rejectLogin(username string) {
	s.metrics.RecordAuthAttempt(metrics.AuthResultBadCredentials)
	slog.Warn("login failed", slog.String("username", username))
}
