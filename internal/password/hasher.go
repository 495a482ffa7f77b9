// Package password はパスワードの一方向ハッシュ化と照合を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength はbcryptが扱える平文の最大バイト数。
const MaxLength = 72

var (
	// ErrEmptyPassword は空のパスワードをハッシュ化しようとしたことを示す。
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong は平文が MaxLength バイトを超えることを示す。
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Hasher はbcryptによるパスワードハッシュ化を行う。
// 出力はソルト付きのため同じ平文でも毎回異なる。
type Hasher struct {
	cost int
}

// NewHasher はHasherを生成する。costが範囲外の場合はbcrypt.DefaultCostを使用する。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードのハッシュを返す。
func (h *Hasher) Hash(plaintext string) (string, error) {
	if err := Validate(plaintext); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify は平文が保存済みハッシュと一致するかを返す。
// 不一致はエラーではなくfalseを返す。ハッシュ自体が不正な場合のみエラーを返す。
func (h *Hasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}

// Validate は平文がハッシュ化可能な長さかどうかを検査する。
func Validate(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) > MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}
