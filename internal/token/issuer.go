// Package token はステートレスなセッショントークン（HS256 JWT）の発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/ainotes/internal/model"
)

// Config はトークン発行に必要な鍵と有効期間。
// 起動時に1回だけ構築し、プロセス実行中は変更しない。
type Config struct {
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
}

// Claims はセッショントークンに含めるクレーム。
type Claims struct {
	// Epoch は発行時点のアカウントのトークンエポック。
	Epoch int `json:"ver"`
	jwt.RegisteredClaims
}

// Token は署名済みトークンとその有効期限。
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer はトークンの発行と検証を行う。
type Issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer はIssuerを生成する。
// 鍵は呼び出し元の変更の影響を受けないようコピーして保持する。
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &Issuer{
		key:    key,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// WithClock は現在時刻の取得関数を差し替えたIssuerを返す。テスト用。
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// TTL はトークンの有効期間を返す。
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue はsubjectとエポックを束縛した署名済みトークンを発行する。
func (i *Issuer) Issue(subject string, epoch int) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("token subject is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify はトークンを検証しクレームを返す。
// 署名不正・期限切れ・構造不正のいずれも model.ErrInvalidToken として返す。
func (i *Issuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, model.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, model.ErrInvalidToken
	}

	return claims, nil
}
