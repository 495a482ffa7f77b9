package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/ainotes/internal/middleware"
	"github.com/hitoshi/ainotes/internal/token"
)

// CookieConfig はトークンCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	// MaxAge はCookieの有効期間（秒）。トークンのTTLと揃える。
	MaxAge int
}

// NewCookieConfig はトークンのTTLからCookieConfigを生成する。
func NewCookieConfig(domain string, secure bool, ttl time.Duration) CookieConfig {
	return CookieConfig{
		Domain: domain,
		Secure: secure,
		MaxAge: int(ttl / time.Second),
	}
}

// setTokenCookie はトークンをHTTP Only Cookieとして設定する。
func setTokenCookie(w http.ResponseWriter, cfg CookieConfig, tok token.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    tok.Value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookie はトークンCookieを削除するようクライアントに指示する。
func clearTokenCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
