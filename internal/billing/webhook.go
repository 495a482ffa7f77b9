// Package billing は決済プロバイダー（Stripe）との境界を提供する。
// Webhookの署名検証、サブスクリプションイベントの反映、
// 顧客作成・チェックアウト・カスタマーポータルの呼び出しを含む。
package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/ainotes/internal/model"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader はWebhook署名を運ぶHTTPヘッダー名。
const SignatureHeader = "Stripe-Signature"

// VerificationError はWebhook検証の失敗を表す。
// UnverifiedType は署名検証前のエンベロープから読んだ種別で、ログ出力にのみ使う。
type VerificationError struct {
	Err            error
	UnverifiedType string
}

func (e *VerificationError) Error() string {
	return e.Err.Error()
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// envelope は署名検証前に読み取るイベントの外枠。
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Verifier はWebhookペイロードの署名を検証する。
type Verifier struct {
	secret string
}

// NewVerifier はエンドポイントシークレットを保持するVerifierを生成する。
func NewVerifier(endpointSecret string) (*Verifier, error) {
	if endpointSecret == "" {
		return nil, errors.New("webhook endpoint secret is required")
	}
	return &Verifier{secret: endpointSecret}, nil
}

// Verify はペイロードと署名ヘッダーを検証し、検証済みのイベントを返す。
// 検査順: 空ペイロード、エンベロープ解析、署名ヘッダーの有無、署名検証。
func (v *Verifier) Verify(payload []byte, signatureHeader string) (*Event, error) {
	if len(payload) == 0 {
		return nil, &VerificationError{Err: fmt.Errorf("%w: empty payload", model.ErrMalformedPayload)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &VerificationError{Err: fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)}
	}
	// null はエラーにならずnilマップになる
	if fields == nil {
		return nil, &VerificationError{Err: fmt.Errorf("%w: payload is not a JSON object", model.ErrMalformedPayload)}
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &VerificationError{Err: fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)}
	}

	if signatureHeader == "" {
		return nil, &VerificationError{
			Err:            fmt.Errorf("%w: missing %s header", model.ErrSignatureInvalid, SignatureHeader),
			UnverifiedType: env.Type,
		}
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &VerificationError{
			Err:            fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err),
			UnverifiedType: env.Type,
		}
	}

	out := &Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Kind: KindOf(string(ev.Type)),
	}
	if ev.Data != nil {
		out.data = ev.Data.Raw
	}
	return out, nil
}
