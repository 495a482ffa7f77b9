package model

import "time"

// SubscriptionStatus は決済プロバイダーから通知されるサブスクリプションの状態。
// プロバイダー側で値が追加されることがあるため、未知の値もそのまま保持する。
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
)

// SubscriptionRecord は決済プロバイダーのサブスクリプションのローカルミラー。
// (CustomerID, SubscriptionID) の組で一意に識別される。
type SubscriptionRecord struct {
	CustomerID         string
	SubscriptionID     string
	Status             SubscriptionStatus
	StartDate          time.Time
	Created            time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	PriceID            string
}

// WebhookEventOutcome はWebhookイベント処理結果の分類。
type WebhookEventOutcome string

const (
	WebhookOutcomeApplied   WebhookEventOutcome = "applied"
	WebhookOutcomeIgnored   WebhookEventOutcome = "ignored"
	WebhookOutcomeUnhandled WebhookEventOutcome = "unhandled"
	WebhookOutcomeFailed    WebhookEventOutcome = "failed"
)

// WebhookEventLog は署名検証済みWebhookイベントの処理記録。
// ペイロード本体は保存しない。
type WebhookEventLog struct {
	EventID    string
	EventType  string
	Outcome    WebhookEventOutcome
	Error      string
	ReceivedAt time.Time

	// DeliveryCount は同じイベントIDを受信した回数。記録時に設定する必要はない。
	DeliveryCount int
}
