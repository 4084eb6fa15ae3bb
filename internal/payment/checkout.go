package payment

import (
	"context"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type CheckoutLineItem struct {
	Name      string
	UnitPrice int64
	Quantity  int64
}

type CheckoutRequest struct {
	OrderID  int64
	Currency string
	Items    []CheckoutLineItem
}

type CreatedSession struct {
	SessionID string
	URL       string
}

// Stripe Checkoutのセッション作成
type StripeCheckout struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeCheckout(secretKey, successURL, cancelURL string) *StripeCheckout {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeCheckout{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, in CheckoutRequest) (CreatedSession, error) {
	if len(in.Items) == 0 {
		return CreatedSession{}, fmt.Errorf("checkout: no line items")
	}

	orderRef := strconv.FormatInt(in.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(orderRef),
	}
	for _, it := range in.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(it.UnitPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	params.AddMetadata("order_id", orderRef)
	params.Context = ctx
	//同じ注文の二重作成をプロバイダ側でも防ぐ
	params.SetIdempotencyKey("checkout-order-" + orderRef)

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return CreatedSession{}, fmt.Errorf("checkout: create session: %w", err)
	}
	return CreatedSession{SessionID: cs.ID, URL: cs.URL}, nil
}
