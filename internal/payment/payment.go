// Package payment создаёт платёжные намерения во внешнем платёжном шлюзе.
package payment

import (
	"context"
	"fmt"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// IntentRequest описывает платёж, который нужно создать.
type IntentRequest struct {
	OrderID       string
	AmountMinor   int64
	Currency      string
	Email         string
	PaymentMethod model.PaymentMethod
	Description   string
}

// Intent описывает созданное платёжное намерение.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// GatewayError переносит сообщение и код ошибки шлюза до вызывающего.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway: %s (%s)", e.Message, e.Code)
	}
	return "payment gateway: " + e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
