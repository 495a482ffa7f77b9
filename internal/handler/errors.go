// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ainotes/internal/middleware"
	"github.com/hitoshi/ainotes/internal/model"
)

// maxJSONBodyBytes はJSONリクエストボディの上限。
const maxJSONBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 解析できない場合は400を書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
		return false
	}
	return true
}

// requireIdentity はコンテキストから解決済みアカウントを取得する。
// 無い場合は401を書き込みnilを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) *model.Identity {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil
	}
	return identity
}

// handleServiceError はドメインエラーをHTTPステータスと統一エラーフォーマットに変換する。
// 対応の無いエラーは500として扱い、詳細はログにのみ記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrBadCredentials):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewBadCredentialsError())
	case errors.Is(err, model.ErrUnauthenticated):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	case errors.Is(err, model.ErrEmptyField):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyFieldError())
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrWeakPassword), errors.Is(err, model.ErrInvalidAccount):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
	case errors.Is(err, model.ErrUsernameTaken):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewUsernameTakenError())
	case errors.Is(err, model.ErrNoBillingCustomer):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewNoBillingCustomerError())
	case errors.Is(err, model.ErrPriceNotFound):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewPriceNotFoundError())
	case errors.Is(err, model.ErrBillingUnavailable):
		slog.Error("billing provider error", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBillingUnavailableError())
	default:
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// handleCredentialMutationError はパスワード変更・アカウント削除の失敗を変換する。
// どの検証に失敗したかを返さないよう、ドメインエラーはすべて詳細の無い400にまとめる。
func handleCredentialMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrBadCredentials),
		errors.Is(err, model.ErrInvalidAccount),
		errors.Is(err, model.ErrEmptyField),
		errors.Is(err, model.ErrWeakPassword):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
	default:
		handleServiceError(w, err)
	}
}
