// Package service реализует бизнес-логику витрины ShipFast.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/events"
	"github.com/mmeshcher/shipfast-storefront/internal/licensing"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
	"github.com/mmeshcher/shipfast-storefront/internal/payment"
	"github.com/mmeshcher/shipfast-storefront/internal/pricing"
	"github.com/mmeshcher/shipfast-storefront/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateOrderWithLicense(ctx context.Context, o *model.Order, l *model.License) error
	GetLicenseByKey(ctx context.Context, key string) (*model.License, error)
	GetLicenseByID(ctx context.Context, id string) (*model.License, error)
	ListLicensesByEmail(ctx context.Context, email string) ([]model.License, error)
	ListLicensesExpiringBetween(ctx context.Context, from, to time.Time) ([]model.License, error)
	ConsumeDownload(ctx context.Context, key string, now time.Time) (*model.License, error)

	RecordDownload(ctx context.Context, a model.DownloadActivity) error
	ListDownloads(ctx context.Context, licenseID string) ([]model.DownloadActivity, error)

	CreateNotification(ctx context.Context, n *model.Notification) (bool, error)
	ListNotifications(ctx context.Context, email string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, email, id string) error
	MarkAllNotificationsRead(ctx context.Context, email string) (int, error)
	DeleteNotification(ctx context.Context, email, id string) error

	CreateTicket(ctx context.Context, t *model.SupportTicket) error
	ListTickets(ctx context.Context, email string) ([]model.SupportTicket, error)
	GetTicket(ctx context.Context, email, id string) (*model.SupportTicket, error)
	AddTicketMessage(ctx context.Context, email, ticketID string, m model.TicketMessage) (*model.SupportTicket, error)
}

// Config содержит параметры бизнес-логики, не относящиеся к зависимостям.
type Config struct {
	SupportEmail       string
	ArtifactsDir       string
	PaymentTimeout     time.Duration
	ExpiryScanInterval time.Duration
}

const (
	defaultPaymentTimeout     = 10 * time.Second
	defaultExpiryScanInterval = time.Hour
	defaultSupportEmail       = "support@shipfast-boilerplate.com"
)

// Service содержит бизнес-логику витрины.
type Service struct {
	repo      Repository
	gateway   payment.Gateway
	publisher events.Publisher
	signer    *licensing.URLSigner
	keys      *licensing.KeyGenerator
	validator *validation.Validator
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

// NewService создаёт сервис с указанными хранилищем, платёжным шлюзом и шиной событий.
func NewService(
	repo Repository,
	gateway payment.Gateway,
	publisher events.Publisher,
	signer *licensing.URLSigner,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = defaultPaymentTimeout
	}
	if cfg.ExpiryScanInterval <= 0 {
		cfg.ExpiryScanInterval = defaultExpiryScanInterval
	}
	if cfg.SupportEmail == "" {
		cfg.SupportEmail = defaultSupportEmail
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		signer:    signer,
		keys:      licensing.NewKeyGenerator(),
		validator: validation.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.publisher.Close()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Plans возвращает каталог тарифов.
func (s *Service) Plans() []model.Plan {
	return catalog.Plans()
}

// Releases возвращает каталог сборок, новые первыми.
func (s *Service) Releases() []model.Release {
	return catalog.Releases()
}

// DiscountPreviewRequest описывает запрос предварительного расчёта скидки.
type DiscountPreviewRequest struct {
	Code   string `json:"code" validate:"required"`
	PlanID string `json:"planId" validate:"required,oneof=personal professional enterprise"`
}

// PreviewDiscount рассчитывает цену тарифа с промокодом, не оформляя заказ.
func (s *Service) PreviewDiscount(_ context.Context, req DiscountPreviewRequest) (*pricing.Quote, error) {
	if fields := s.validator.Struct(req); len(fields) > 0 {
		return nil, validationError(fields)
	}

	plan, ok := catalog.Plan(model.PlanID(req.PlanID))
	if !ok {
		return nil, validationError(map[string]string{"planId": "is invalid"})
	}

	q, err := pricing.Apply(req.Code, plan.Price)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidDiscountCode) {
			return nil, newError(KindInvalidDiscountCode, "Invalid or expired discount code")
		}
		return nil, internalError(err)
	}
	return &q, nil
}

func (s *Service) notify(ctx context.Context, n *model.Notification) {
	if _, err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("create notification error", zap.Error(err), zap.String("title", n.Title))
	}
}

func (s *Service) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("publish event error", zap.Error(err), zap.String("subject", subject))
	}
}
