package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ainotes/internal/account"
	"github.com/hitoshi/ainotes/internal/auth"
	"github.com/hitoshi/ainotes/internal/middleware"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/token"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn    func(ctx context.Context, username, password string) (*model.Identity, token.Token, error)
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.Identity, token.Token, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Identity, token.Token, error) {
	return m.loginFn(ctx, username, password)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Identity, token.Token, error) {
	return m.registerFn(ctx, in)
}

type mockAccountService struct {
	changePasswordFn  func(ctx context.Context, identity *model.Identity, oldPassword, newPassword string) (token.Token, error)
	deleteAccountFn   func(ctx context.Context, identity *model.Identity, password string) error
	purchaseHistoryFn func(ctx context.Context, identity *model.Identity) ([]*model.SubscriptionRecord, error)
}

func (m *mockAccountService) ChangePassword(ctx context.Context, identity *model.Identity, oldPassword, newPassword string) (token.Token, error) {
	return m.changePasswordFn(ctx, identity, oldPassword, newPassword)
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, identity *model.Identity, password string) error {
	return m.deleteAccountFn(ctx, identity, password)
}

func (m *mockAccountService) Details(_ context.Context, identity *model.Identity) account.Details {
	return account.Details{
		Username:      identity.Username,
		Email:         identity.Email,
		Roles:         identity.Roles.Slice(),
		BillingLinked: identity.HasBillingCustomer(),
	}
}

func (m *mockAccountService) PurchaseHistory(ctx context.Context, identity *model.Identity) ([]*model.SubscriptionRecord, error) {
	return m.purchaseHistoryFn(ctx, identity)
}

type mockCheckoutService struct {
	checkoutURLFn func(ctx context.Context, identity *model.Identity, lookupKey string) (string, error)
	portalURLFn   func(ctx context.Context, identity *model.Identity) (string, error)
}

func (m *mockCheckoutService) CheckoutURL(ctx context.Context, identity *model.Identity, lookupKey string) (string, error) {
	return m.checkoutURLFn(ctx, identity, lookupKey)
}

func (m *mockCheckoutService) PortalURL(ctx context.Context, identity *model.Identity) (string, error) {
	return m.portalURLFn(ctx, identity)
}

// withIdentity はリクエストコンテキストに解決済みアカウントを注入する。
func withIdentity(r *http.Request, username string) *http.Request {
	identity := &model.Identity{
		Username: username,
		Email:    username + "@example.com",
		Roles:    model.NewRoleSet(model.RoleUser),
	}
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
