// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"strings"
	"time"
)

// Role はユーザーに付与される権限名を表す。
type Role string

const (
	// RoleUser は一般ユーザーの権限。アカウント作成時に付与される。
	RoleUser Role = "USER"
	// RoleAdmin は管理者権限。
	RoleAdmin Role = "ADMIN"
)

// RoleSet はユーザーに付与された権限の集合。
// 永続化層ではカンマ区切り文字列として保存されるが、
// その文字列はリポジトリのアダプタ外に持ち出さない。
type RoleSet map[Role]struct{}

// NewRoleSet は指定した権限を持つRoleSetを生成する。
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// ParseRoles はカンマ区切りの権限文字列をRoleSetに変換する。
// 空文字列・空白のみの場合は空集合を返す。
func ParseRoles(s string) RoleSet {
	set := RoleSet{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set[Role(part)] = struct{}{}
	}
	return set
}

// Has は指定した権限を含むかどうかを返す。
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Slice は権限を名前順に並べたスライスを返す。
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String は永続化用のカンマ区切り表現を返す。順序は決定的。
func (s RoleSet) String() string {
	roles := s.Slice()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// Identity は保存済みのユーザーアカウントを表す。
type Identity struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Roles        RoleSet
	// BillingCustomerID は決済プロバイダー側の顧客ID。未連携の場合はnil。
	BillingCustomerID *string
	// TokenEpoch はパスワード変更のたびに増加する。
	// 発行済みトークンのverクレームと一致しない場合、そのトークンは解決されない。
	TokenEpoch int
	CreatedAt  time.Time
}

// HasBillingCustomer は決済プロバイダーの顧客IDが連携済みかどうかを返す。
func (i *Identity) HasBillingCustomer() bool {
	return i.BillingCustomerID != nil && *i.BillingCustomerID != ""
}
