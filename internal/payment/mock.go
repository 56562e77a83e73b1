package payment

import (
	"context"

	"github.com/google/uuid"
)

// MockGateway подтверждает любой платёж без обращения к внешнему сервису.
type MockGateway struct{}

// NewMockGateway создаёт шлюз-заглушку для локального запуска.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateIntent возвращает успешное намерение со случайным идентификатором.
func (g *MockGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &GatewayError{Code: "timeout", Message: "payment gateway timeout", Err: err}
	}
	if req.AmountMinor < 0 {
		return nil, &GatewayError{Code: "amount_invalid", Message: "amount must not be negative"}
	}

	id := "pi_mock_" + uuid.NewString()
	return &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "succeeded",
	}, nil
}
