// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ainotes/internal/model"
)

// TokenCookieName はセッショントークンを運ぶCookieの名前。
const TokenCookieName = "jwt"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに解決済みアカウントを格納するためのキー。
var identityContextKey = contextKey("identity")

// IdentityResolver はトークンからアカウントを解決するインターフェース。
// auth.Serviceが実装する。
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (*model.Identity, error)
}

// NewIdentityMiddleware はCookieのトークンからアカウントを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 解決できないリクエストには401 Unauthorizedを返す。
// 解決結果はそのリクエストの間だけ有効で、リクエストをまたいで保持しない。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(TokenCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity, err := resolver.Resolve(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, model.ErrUnauthenticated) {
					slog.Error("failed to resolve identity",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			setLogUsername(r.Context(), identity.Username)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから解決済みアカウントを取得する。
// IdentityMiddlewareを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストにアカウントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
