package billing

import (
	"context"
	"fmt"

	"github.com/hitoshi/ainotes/internal/model"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeClient はStripe APIを呼び出すCustomerCreator / PaymentProvider の実装。
type StripeClient struct {
	api *client.API
}

// NewStripeClient はシークレットキーでStripeClientを生成する。
func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{api: client.New(apiKey, nil)}
}

// CreateCustomer はメールアドレスで顧客を作成し、顧客IDを返す。
func (c *StripeClient) CreateCustomer(ctx context.Context, email, username string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("username", username)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", model.ErrBillingUnavailable, err)
	}
	return cust.ID, nil
}

// PriceIDByLookupKey はlookup keyに一致する最初の価格IDを返す。
func (c *StripeClient) PriceIDByLookupKey(ctx context.Context, lookupKey string) (string, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
	}
	params.Context = ctx

	iter := c.api.Prices.List(params)
	if iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("%w: list prices: %v", model.ErrBillingUnavailable, err)
	}
	return "", model.ErrPriceNotFound
}

// CreateCheckoutSession はサブスクリプションモードのチェックアウトセッションを作成する。
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
	}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", model.ErrBillingUnavailable, err)
	}
	return sess.URL, nil
}

// CreatePortalSession はカスタマーポータルのセッションを作成する。
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", model.ErrBillingUnavailable, err)
	}
	return sess.URL, nil
}

var (
	_ CustomerCreator = (*StripeClient)(nil)
	_ PaymentProvider = (*StripeClient)(nil)
)
