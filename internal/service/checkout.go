package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/events"
	"github.com/mmeshcher/shipfast-storefront/internal/licensing"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
	"github.com/mmeshcher/shipfast-storefront/internal/payment"
	"github.com/mmeshcher/shipfast-storefront/internal/pricing"
	"github.com/mmeshcher/shipfast-storefront/internal/repository"
)

const (
	currency       = "USD"
	maxKeyAttempts = 3
)

// CheckoutRequest описывает заявку на покупку тарифа.
type CheckoutRequest struct {
	PlanID         string `json:"planId" validate:"required,oneof=personal professional enterprise"`
	FullName       string `json:"fullName" validate:"required,min=2"`
	Email          string `json:"email" validate:"required,email"`
	CompanyName    string `json:"companyName"`
	PaymentMethod  string `json:"paymentMethod" validate:"required,oneof=card paypal"`
	DiscountCode   string `json:"discountCode"`
	DiscountAmount *int   `json:"discountAmount" validate:"omitempty,gte=0"`
	FinalPrice     *int   `json:"finalPrice" validate:"required,gte=0"`
}

// OrderDetails содержит сведения об оформленном заказе.
type OrderDetails struct {
	OrderID         string    `json:"orderId"`
	PlanID          string    `json:"planId"`
	PlanName        string    `json:"planName"`
	BasePrice       int       `json:"basePrice"`
	DiscountCode    string    `json:"discountCode,omitempty"`
	DiscountAmount  int       `json:"discountAmount"`
	Amount          int       `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaymentIntentID string    `json:"paymentIntentId"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	CompanyName     string    `json:"companyName"`
	PurchaseDate    time.Time `json:"purchaseDate"`
}

// NextSteps содержит данные выпущенной лицензии и дальнейшие действия покупателя.
type NextSteps struct {
	LicenseKey    string    `json:"licenseKey"`
	LicenseExpiry time.Time `json:"licenseExpiry"`
	MaxDownloads  int       `json:"maxDownloads"`
	DownloadURL   string    `json:"downloadUrl"`
	GitHubAccess  bool      `json:"githubAccess"`
	SupportEmail  string    `json:"supportEmail"`
}

// CheckoutResult описывает ответ на успешную покупку.
type CheckoutResult struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	OrderDetails OrderDetails `json:"orderDetails"`
	NextSteps    NextSteps    `json:"nextSteps"`
}

// Checkout оформляет покупку: проверяет заявку, сверяет скидку и итоговую цену с серверным
// расчётом, создаёт платёж, выпускает лицензию и сохраняет заказ вместе с ней.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if fields := s.validator.Struct(req); len(fields) > 0 {
		return nil, validationError(fields)
	}

	plan, ok := catalog.Plan(model.PlanID(req.PlanID))
	if !ok {
		return nil, validationError(map[string]string{"planId": "is invalid"})
	}

	quote, err := s.quote(req, plan)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	orderID := "ORD-" + uuid.NewString()

	intent, err := s.createIntent(ctx, orderID, req, plan, quote)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:              orderID,
		PlanID:          plan.ID,
		CustomerName:    req.FullName,
		Email:           req.Email,
		CompanyName:     strings.TrimSpace(req.CompanyName),
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		DiscountCode:    quote.Code,
		DiscountAmount:  quote.Discount,
		BasePrice:       quote.BasePrice,
		FinalPrice:      quote.FinalPrice,
		Currency:        currency,
		PaymentIntentID: intent.ID,
		CreatedAt:       now,
	}

	license, err := s.issueLicense(ctx, order, plan, now)
	if err != nil {
		s.logger.Error("persist order error",
			zap.Error(err),
			zap.String("order_id", orderID),
			zap.String("payment_intent", intent.ID),
		)
		return nil, internalError(err)
	}

	s.publish(ctx, events.SubjectOrderCreated, events.OrderCreated{
		OrderID:    order.ID,
		PlanID:     string(order.PlanID),
		Email:      order.Email,
		FinalPrice: order.FinalPrice,
		Currency:   order.Currency,
		LicenseID:  license.ID,
		Timestamp:  now,
	})

	s.notify(ctx, &model.Notification{
		ID:        "notif_" + uuid.NewString(),
		Email:     order.Email,
		Category:  model.NotificationSuccess,
		Title:     "License Activated",
		Body:      fmt.Sprintf("Your %s license has been successfully activated.", plan.Name),
		CreatedAt: now,
		Action:    &model.NotificationAction{Label: "Download Now", URL: "/dashboard/downloads"},
	})

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("plan", string(plan.ID)),
		zap.Int("final_price", order.FinalPrice),
		zap.String("license", licensing.MaskKey(license.Key)),
	)

	company := order.CompanyName
	if company == "" {
		company = "N/A"
	}

	return &CheckoutResult{
		Success: true,
		Message: "Purchase processed successfully",
		OrderDetails: OrderDetails{
			OrderID:         order.ID,
			PlanID:          string(plan.ID),
			PlanName:        plan.Name,
			BasePrice:       order.BasePrice,
			DiscountCode:    order.DiscountCode,
			DiscountAmount:  order.DiscountAmount,
			Amount:          order.FinalPrice,
			Currency:        order.Currency,
			PaymentMethod:   string(order.PaymentMethod),
			PaymentIntentID: order.PaymentIntentID,
			CustomerName:    order.CustomerName,
			CustomerEmail:   order.Email,
			CompanyName:     company,
			PurchaseDate:    now,
		},
		NextSteps: NextSteps{
			LicenseKey:    license.Key,
			LicenseExpiry: license.ExpiresAt,
			MaxDownloads:  license.MaxDownloads,
			DownloadURL:   "/api/download?licenseKey=" + license.Key,
			GitHubAccess:  plan.GitHubAccess,
			SupportEmail:  s.cfg.SupportEmail,
		},
	}, nil
}

// quote пересчитывает цену на сервере и сверяет её с заявленными клиентом значениями.
func (s *Service) quote(req CheckoutRequest, plan model.Plan) (pricing.Quote, error) {
	q, err := pricing.Apply(req.DiscountCode, plan.Price)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidDiscountCode) {
			return pricing.Quote{}, newError(KindInvalidDiscountCode, "Invalid or expired discount code")
		}
		return pricing.Quote{}, internalError(err)
	}

	claimed := 0
	if req.DiscountAmount != nil {
		claimed = *req.DiscountAmount
	}
	if strings.TrimSpace(req.DiscountCode) != "" && claimed != q.Discount {
		return pricing.Quote{}, &Error{
			Kind:    KindDiscountMismatch,
			Message: "Discount amount does not match the discount code",
			Details: map[string]any{"expected": q.Discount, "claimed": claimed},
		}
	}

	if *req.FinalPrice != q.FinalPrice {
		return pricing.Quote{}, &Error{
			Kind:    KindPriceMismatch,
			Message: "Final price does not match the plan price",
			Details: map[string]any{"expected": q.FinalPrice, "claimed": *req.FinalPrice},
		}
	}
	return q, nil
}

func (s *Service) createIntent(ctx context.Context, orderID string, req CheckoutRequest, plan model.Plan, q pricing.Quote) (*payment.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:       orderID,
		AmountMinor:   int64(q.FinalPrice) * 100,
		Currency:      currency,
		Email:         req.Email,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		Description:   "ShipFast " + plan.Name + " license",
	})
	if err == nil {
		return intent, nil
	}

	s.logger.Warn("create payment intent error", zap.Error(err), zap.String("order_id", orderID))

	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		return nil, &Error{
			Kind:    KindPaymentGateway,
			Message: gwErr.Message,
			Details: map[string]any{"code": gwErr.Code},
			Err:     err,
		}
	}
	code := "gateway_unavailable"
	if errors.Is(err, context.DeadlineExceeded) {
		code = "timeout"
	}
	return nil, &Error{
		Kind:    KindPaymentGateway,
		Message: "Payment gateway is unavailable",
		Details: map[string]any{"code": code},
		Err:     err,
	}
}

// issueLicense выпускает ключ и сохраняет заказ с лицензией; при конфликте ключа выпускает новый.
func (s *Service) issueLicense(ctx context.Context, order *model.Order, plan model.Plan, now time.Time) (*model.License, error) {
	for attempt := 1; ; attempt++ {
		key, err := s.keys.Generate(plan.ID, order.Email)
		if err != nil {
			return nil, err
		}

		license := &model.License{
			ID:           "lic_" + uuid.NewString(),
			Key:          key,
			PlanID:       plan.ID,
			Email:        order.Email,
			OrderID:      order.ID,
			PurchasedAt:  now,
			ExpiresAt:    plan.ExpiresAt(now),
			Active:       true,
			MaxDownloads: plan.MaxDownloads,
		}

		err = s.repo.CreateOrderWithLicense(ctx, order, license)
		if err == nil {
			return license, nil
		}
		if !errors.Is(err, repository.ErrDuplicateLicenseKey) || attempt == maxKeyAttempts {
			return nil, err
		}
		s.logger.Warn("license key collision, regenerating", zap.Int("attempt", attempt))
	}
}
