package model

import (
	"errors"
	"fmt"
)

// ドメインエラー。呼び出し側は errors.Is で判定する。
var (
	// ErrBadCredentials はユーザー名またはパスワードが一致しないことを示す。
	// 存在しないユーザー名の場合も同じエラーを返し、外部からは区別できない。
	ErrBadCredentials = errors.New("bad credentials")
	// ErrUnauthenticated はトークンが無い、無効、期限切れ、または対応するアカウントが無いことを示す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken はトークンの構造・署名・有効期限のいずれかに問題があることを示す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidAccount は識別解決後に対象アカウントが消失していたことを示す。
	ErrInvalidAccount = errors.New("invalid account")
	// ErrUsernameTaken はユーザー名が既に使用されていることを示す。
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmptyField は必須入力が空であることを示す。
	ErrEmptyField = errors.New("required field is empty")
	// ErrInvalidInput は入力の形式が不正であることを示す。
	ErrInvalidInput = errors.New("invalid input")
	// ErrWeakPassword は新しいパスワードが要件を満たさないことを示す。
	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrMalformedPayload はWebhookペイロードが空、またはイベントとして解析できないことを示す。
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrSignatureInvalid はWebhook署名ヘッダーが無い、または検証に失敗したことを示す。
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrRecordNotFound は更新対象のサブスクリプションが存在しないことを示す。
	ErrRecordNotFound = errors.New("subscription record not found")
	// ErrDuplicateSubscription は同じ (customer, subscription) の組が既に存在することを示す。
	ErrDuplicateSubscription = errors.New("subscription record already exists")
	// ErrUnhandledEventType は未対応のイベント種別を受信したことを示す。
	// プロバイダーには正常応答を返し、再送させない。
	ErrUnhandledEventType = errors.New("unhandled webhook event type")
	// ErrNoBillingCustomer は決済プロバイダーの顧客IDが未連携であることを示す。
	ErrNoBillingCustomer = errors.New("billing customer not linked")
	// ErrPriceNotFound はlookup keyに対応する価格が存在しないことを示す。
	ErrPriceNotFound = errors.New("price not found for lookup key")
	// ErrBillingUnavailable は決済プロバイダーが未設定、または呼び出しに失敗したことを示す。
	ErrBillingUnavailable = errors.New("billing provider unavailable")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeBadCredentials     = "BAD_CREDENTIALS"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeNoBillingCustomer  = "NO_BILLING_CUSTOMER"
	ErrCodePriceNotFound      = "PRICE_NOT_FOUND"
	ErrCodeInvalidWebhook     = "INVALID_WEBHOOK"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBillingUnavailable = "BILLING_UNAVAILABLE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewBadCredentialsError はログイン失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っているかは含めない。
func NewBadCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeBadCredentials,
		Message:  "Invalid username or password.",
		Category: "auth",
		Action:   "Check your username and password.",
	}
}

// NewBadRequestError は詳細を含まない汎用の不正リクエストエラーを生成する。
// パスワード変更・アカウント削除の失敗ではどの検証に失敗したかを返さない。
func NewBadRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  "The request could not be completed.",
		Category: "validation",
		Action:   "Check the submitted values and try again.",
	}
}

// NewEmptyFieldError は必須項目の未入力エラーを生成する。
func NewEmptyFieldError() *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  "A field within the request is empty.",
		Category: "validation",
		Action:   "Fill in all required fields.",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Failed to create account.",
		Category: "validation",
		Action:   "Choose a different username.",
	}
}

// NewNoBillingCustomerError は決済顧客未連携エラーを生成する。
func NewNoBillingCustomerError() *APIError {
	return &APIError{
		Code:     ErrCodeNoBillingCustomer,
		Message:  "No billing account is linked to this user.",
		Category: "billing",
		Action:   "Contact support to link a billing account.",
	}
}

// NewPriceNotFoundError は購入対象の価格が見つからないエラーを生成する。
func NewPriceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePriceNotFound,
		Message:  "The requested plan does not exist.",
		Category: "billing",
		Action:   "Choose a plan from the pricing page.",
	}
}

// NewInvalidWebhookError はWebhookの検証失敗エラーを生成する。
func NewInvalidWebhookError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebhook,
		Message:  "Webhook payload or signature is invalid.",
		Category: "billing",
		Action:   "Do not retry this delivery.",
	}
}

// NewBillingUnavailableError は決済プロバイダー呼び出しの失敗エラーを生成する。
func NewBillingUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBillingUnavailable,
		Message:  "The billing provider could not be reached.",
		Category: "billing",
		Action:   "Wait a moment and try again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
