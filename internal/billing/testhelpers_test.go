package billing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

// subscriptionEventJSON はサブスクリプションを埋め込んだイベントJSONを組み立てる。
func subscriptionEventJSON(eventID, eventType, customerID, subscriptionID, status string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": %q,
  "api_version": "2020-08-27",
  "created": 1767225600,
  "data": {
    "object": {
      "id": %q,
      "object": "subscription",
      "customer": %q,
      "status": %q,
      "start_date": 1767225600,
      "created": 1767225600,
      "items": {
        "object": "list",
        "data": [
          {
            "id": "si_1",
            "object": "subscription_item",
            "created": 1767225601,
            "current_period_start": 1767225600,
            "current_period_end": 1769904000,
            "price": {"id": "price_basic", "object": "price"}
          }
        ]
      }
    }
  }
}`, eventID, eventType, subscriptionID, customerID, status))
}

// sign はテスト用シークレットで署名ヘッダーを生成する。
func sign(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	require.NotEmpty(t, signed.Header)
	return signed.Header
}

// verified は署名済みペイロードを検証してイベントを返す。
func verified(t *testing.T, payload []byte) *Event {
	t.Helper()
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	ev, err := v.Verify(payload, sign(t, payload, testSecret, time.Now()))
	require.NoError(t, err)
	return ev
}
