package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/ainotes/internal/model"
	"github.com/stripe/stripe-go/v82"
)

// EventKind は決済プロバイダーのイベント種別に対応する内部の種別。
type EventKind int

const (
	// EventUnhandled は対応表に無いイベント種別。ゼロ値として扱う。
	EventUnhandled EventKind = iota
	EventSubscriptionCreated
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventTrialWillEnd
	EventEntitlementSummaryUpdated
)

// eventKinds はプロバイダーのイベント種別文字列から内部種別への対応表。
// 起動後に変更しない。
var eventKinds = map[string]EventKind{
	"customer.subscription.created":                   EventSubscriptionCreated,
	"customer.subscription.updated":                   EventSubscriptionUpdated,
	"customer.subscription.deleted":                   EventSubscriptionDeleted,
	"customer.subscription.trial_will_end":            EventTrialWillEnd,
	"entitlements.active_entitlement_summary.updated": EventEntitlementSummaryUpdated,
}

// KindOf はイベント種別文字列を内部種別に変換する。未知の種別は EventUnhandled を返す。
func KindOf(eventType string) EventKind {
	if k, ok := eventKinds[eventType]; ok {
		return k
	}
	return EventUnhandled
}

// String はメトリクスのラベルとして使う種別名を返す。
func (k EventKind) String() string {
	switch k {
	case EventSubscriptionCreated:
		return "subscription_created"
	case EventSubscriptionUpdated:
		return "subscription_updated"
	case EventSubscriptionDeleted:
		return "subscription_deleted"
	case EventTrialWillEnd:
		return "trial_will_end"
	case EventEntitlementSummaryUpdated:
		return "entitlement_summary_updated"
	default:
		return "unhandled"
	}
}

// Event は署名検証済みのWebhookイベント。Verifier以外からは生成しない。
type Event struct {
	ID   string
	Type string
	Kind EventKind
	data json.RawMessage
}

// subscription はイベントに埋め込まれたサブスクリプションを取り出す。
func (e *Event) subscription() (*stripe.Subscription, error) {
	if len(e.data) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", model.ErrMalformedPayload, e.ID)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(e.data, &sub); err != nil {
		return nil, fmt.Errorf("%w: decode subscription: %v", model.ErrMalformedPayload, err)
	}
	if sub.ID == "" || sub.Customer == nil || sub.Customer.ID == "" {
		return nil, fmt.Errorf("%w: subscription without id or customer", model.ErrMalformedPayload)
	}
	return &sub, nil
}

// subscriptionRecord はプロバイダーのサブスクリプションからローカルレコードを組み立てる。
// 期間・価格は先頭の明細から取得する。
func subscriptionRecord(sub *stripe.Subscription) *model.SubscriptionRecord {
	rec := &model.SubscriptionRecord{
		CustomerID:     sub.Customer.ID,
		SubscriptionID: sub.ID,
		Status:         model.SubscriptionStatus(sub.Status),
		StartDate:      unixTime(sub.StartDate),
		Created:        unixTime(sub.Created),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		rec.Created = unixTime(item.Created)
		rec.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		rec.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		if item.Price != nil {
			rec.PriceID = item.Price.ID
		}
	}
	return rec
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
