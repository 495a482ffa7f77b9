package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/ainotes/internal/model"
)

// CustomerCreator は決済プロバイダー側に顧客を作成する。
// 戻り値の顧客IDが空の場合、アカウントは未連携のまま作成される。
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, username string) (string, error)
}

// PaymentProvider はチェックアウトとカスタマーポータルのセッションを発行する。
type PaymentProvider interface {
	// PriceIDByLookupKey はlookup keyに対応する価格IDを返す。無い場合は model.ErrPriceNotFound。
	PriceIDByLookupKey(ctx context.Context, lookupKey string) (string, error)
	// CreateCheckoutSession はサブスクリプション購入用のセッションURLを返す。
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL string) (string, error)
	// CreatePortalSession はカスタマーポータルのセッションURLを返す。
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// landingPath は決済完了・ポータル終了後の戻り先。
const landingPath = "/landing"

// Checkout は認証済みユーザーの購入・契約管理の導線を提供する。
type Checkout struct {
	provider    PaymentProvider
	frontendURL string
}

// NewCheckout はCheckoutを生成する。
func NewCheckout(provider PaymentProvider, frontendURL string) *Checkout {
	return &Checkout{
		provider:    provider,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// CheckoutURL はlookup keyで指定したプランのチェックアウトURLを返す。
func (c *Checkout) CheckoutURL(ctx context.Context, identity *model.Identity, lookupKey string) (string, error) {
	if lookupKey == "" {
		return "", model.ErrEmptyField
	}
	if !identity.HasBillingCustomer() {
		return "", model.ErrNoBillingCustomer
	}

	priceID, err := c.provider.PriceIDByLookupKey(ctx, lookupKey)
	if err != nil {
		return "", err
	}

	url, err := c.provider.CreateCheckoutSession(ctx, *identity.BillingCustomerID, priceID, c.frontendURL+landingPath)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return url, nil
}

// PortalURL はカスタマーポータルのURLを返す。
func (c *Checkout) PortalURL(ctx context.Context, identity *model.Identity) (string, error) {
	if !identity.HasBillingCustomer() {
		return "", model.ErrNoBillingCustomer
	}

	url, err := c.provider.CreatePortalSession(ctx, *identity.BillingCustomerID, c.frontendURL+landingPath)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return url, nil
}

// Disabled はAPIキー未設定時に使う決済プロバイダー。
// 顧客作成は空IDを返し、セッション発行は model.ErrBillingUnavailable を返す。
type Disabled struct{}

func (Disabled) CreateCustomer(context.Context, string, string) (string, error) {
	return "", nil
}

func (Disabled) PriceIDByLookupKey(context.Context, string) (string, error) {
	return "", model.ErrBillingUnavailable
}

func (Disabled) CreateCheckoutSession(context.Context, string, string, string) (string, error) {
	return "", model.ErrBillingUnavailable
}

func (Disabled) CreatePortalSession(context.Context, string, string) (string, error) {
	return "", model.ErrBillingUnavailable
}

var (
	_ CustomerCreator = Disabled{}
	_ PaymentProvider = Disabled{}
)
