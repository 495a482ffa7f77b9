package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ainotes/internal/billing"
	"github.com/hitoshi/ainotes/internal/middleware"
	"github.com/hitoshi/ainotes/internal/model"
)

// CheckoutServiceInterface は購入導線のハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	CheckoutURL(ctx context.Context, identity *model.Identity, lookupKey string) (string, error)
	PortalURL(ctx context.Context, identity *model.Identity) (string, error)
}

// WebhookVerifier はWebhookペイロードの署名を検証する。
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (*billing.Event, error)
}

// WebhookProcessor は検証済みイベントを反映する。
type WebhookProcessor interface {
	Process(ctx context.Context, ev *billing.Event) (model.WebhookEventOutcome, error)
}

type urlResponse struct {
	URL string `json:"url"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// BillingHandler は決済プロバイダー関連のHTTPハンドラー。
type BillingHandler struct {
	checkout     CheckoutServiceInterface
	verifier     WebhookVerifier
	processor    WebhookProcessor
	maxBodyBytes int64
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(checkout CheckoutServiceInterface, verifier WebhookVerifier, processor WebhookProcessor, maxBodyBytes int64) *BillingHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 65536
	}
	return &BillingHandler{
		checkout:     checkout,
		verifier:     verifier,
		processor:    processor,
		maxBodyBytes: maxBodyBytes,
	}
}

// CreateCheckoutSession はチェックアウトセッションのURLを返す。
// POST /stripe/create-checkout-session?lookup_key=xxx
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	url, err := h.checkout.CheckoutURL(r.Context(), identity, r.URL.Query().Get("lookup_key"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

// CreatePortalSession はカスタマーポータルのURLを返す。
// POST /stripe/create-portal-session
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	url, err := h.checkout.PortalURL(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

// Webhook は決済プロバイダーからのイベントを受信する。
//   - 200: 処理済み、または未対応の種別（再送させない）
//   - 400: ペイロード不正または署名検証失敗（再送しても成功しない）
//   - 500: 反映に失敗（プロバイダーに再送させる）
//
// POST /stripe/webhook
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		slog.Warn("failed to read webhook payload", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidWebhookError())
		return
	}

	ev, err := h.verifier.Verify(payload, r.Header.Get(billing.SignatureHeader))
	if err != nil {
		attrs := []any{slog.String("error", err.Error())}
		var verr *billing.VerificationError
		if errors.As(err, &verr) && verr.UnverifiedType != "" {
			attrs = append(attrs, slog.String("unverified_type", verr.UnverifiedType))
		}
		slog.Warn("webhook signature invalid", attrs...)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidWebhookError())
		return
	}

	outcome, err := h.processor.Process(r.Context(), ev)
	if err != nil && !errors.Is(err, model.ErrUnhandledEventType) {
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: string(outcome)})
}
