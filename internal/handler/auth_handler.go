package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ainotes/internal/auth"
	"github.com/hitoshi/ainotes/internal/model"
	"github.com/hitoshi/ainotes/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*model.Identity, token.Token, error)
	Register(ctx context.Context, in auth.RegisterInput) (*model.Identity, token.Token, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// identityResponse はアカウント情報のレスポンス。パスワードハッシュは含めない。
type identityResponse struct {
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	BillingLinked bool     `json:"billing_linked"`
}

func toIdentityResponse(identity *model.Identity) identityResponse {
	roles := identity.Roles.Slice()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return identityResponse{
		Username:      identity.Username,
		Email:         identity.Email,
		Roles:         names,
		BillingLinked: identity.HasBillingCustomer(),
	}
}

// AuthHandler はパスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookie  CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
	}
}

// Login はユーザー名とパスワードで認証し、トークンCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	identity, tok, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setTokenCookie(w, h.cookie, tok)
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// Create はアカウントを作成し、トークンCookieを設定する。
// POST /auth/create
func (h *AuthHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	identity, tok, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setTokenCookie(w, h.cookie, tok)
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// Logout はトークンCookieを削除する。
// トークン自体はステートレスのため、サーバー側で破棄するものは無い。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
