package payment

import (
	"context"
	"fmt"

	"shortlet/internal/modules/reservation"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeGateway opens checkout sessions with Stripe. The reservation id rides
// along in the session metadata so a divergent event can still be traced.
type StripeGateway struct {
	successURL string
	cancelURL  string
}

func NewStripeGateway(apiKey, successURL, cancelURL string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{successURL: successURL, cancelURL: cancelURL}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req reservation.CheckoutSessionRequest) (*reservation.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					// Stripe wants the amount in the smallest currency unit.
					UnitAmount: stripe.Int64(req.Amount * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(g.cancelURL),
		CustomerEmail: stripe.String(req.CustomerEmail),
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", req.ReservationID.String())

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	var intentID string
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}
	return &reservation.CheckoutSession{
		ID:              sess.ID,
		PaymentIntentID: intentID,
		URL:             sess.URL,
	}, nil
}
