package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway создаёт PaymentIntent в Stripe.
type StripeGateway struct {
	create func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewStripeGateway настраивает клиент Stripe с ограничением времени ответа.
func NewStripeGateway(secret string, timeout time.Duration) *StripeGateway {
	stripe.Key = secret
	stripe.SetHTTPClient(&http.Client{Timeout: timeout})
	return &StripeGateway{create: paymentintent.New}
}

// CreateIntent создаёт PaymentIntent на сумму в минимальных единицах валюты. Повторов нет.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		ReceiptEmail:       stripe.String(req.Email),
		Description:        stripe.String(req.Description),
		PaymentMethodTypes: stripe.StringSlice([]string{string(req.PaymentMethod)}),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	pi, err := g.create(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &GatewayError{Code: string(stripeErr.Code), Message: stripeErr.Msg, Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &GatewayError{Code: "timeout", Message: "payment gateway timeout", Err: err}
		}
		return nil, &GatewayError{Message: err.Error(), Err: err}
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}
