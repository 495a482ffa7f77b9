package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/ainotes/internal/account"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/token"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	ChangePassword(ctx context.Context, identity *model.Identity, oldPassword, newPassword string) (token.Token, error)
	DeleteAccount(ctx context.Context, identity *model.Identity, password string) error
	Details(ctx context.Context, identity *model.Identity) account.Details
	PurchaseHistory(ctx context.Context, identity *model.Identity) ([]*model.SubscriptionRecord, error)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type detailsResponse struct {
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Roles         []string  `json:"roles"`
	BillingLinked bool      `json:"billing_linked"`
	CreatedAt     time.Time `json:"created_at"`
}

type subscriptionResponse struct {
	SubscriptionID     string    `json:"subscription_id"`
	Status             string    `json:"status"`
	PriceID            string    `json:"price_id"`
	StartDate          time.Time `json:"start_date"`
	Created            time.Time `json:"created"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
}

// AccountHandler は認証済みアカウントのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookie  CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookie CookieConfig) *AccountHandler {
	return &AccountHandler{
		service: service,
		cookie:  cookie,
	}
}

// ChangePassword はパスワードを変更し、新しいトークンでCookieを置き換える。
// POST /account/change-password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req changePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	tok, err := h.service.ChangePassword(r.Context(), identity, req.OldPassword, req.NewPassword)
	if err != nil {
		handleCredentialMutationError(w, err)
		return
	}

	setTokenCookie(w, h.cookie, tok)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed."})
}

// Delete はアカウントを削除し、Cookieを削除する。
// POST /account/delete
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req deleteAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), identity, req.Password); err != nil {
		handleCredentialMutationError(w, err)
		return
	}

	clearTokenCookie(w, h.cookie)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Account deleted."})
}

// UserDetails はアカウント情報を返す。
// GET /account/user-details
func (h *AccountHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	d := h.service.Details(r.Context(), identity)
	roles := make([]string, len(d.Roles))
	for i, role := range d.Roles {
		roles[i] = string(role)
	}
	writeJSON(w, http.StatusOK, detailsResponse{
		Username:      d.Username,
		Email:         d.Email,
		Roles:         roles,
		BillingLinked: d.BillingLinked,
		CreatedAt:     d.CreatedAt,
	})
}

// PurchaseHistory はサブスクリプション履歴を返す。
// GET /account/purchase-history
func (h *AccountHandler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	records, err := h.service.PurchaseHistory(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]subscriptionResponse, len(records))
	for i, rec := range records {
		resp[i] = subscriptionResponse{
			SubscriptionID:     rec.SubscriptionID,
			Status:             string(rec.Status),
			PriceID:            rec.PriceID,
			StartDate:          rec.StartDate,
			Created:            rec.Created,
			CurrentPeriodStart: rec.CurrentPeriodStart,
			CurrentPeriodEnd:   rec.CurrentPeriodEnd,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
