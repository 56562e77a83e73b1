// Package handler содержит HTTP-обработчики API витрины.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/middleware"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
	"github.com/mmeshcher/shipfast-storefront/internal/pricing"
	"github.com/mmeshcher/shipfast-storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Plans() []model.Plan
	Releases() []model.Release
	PreviewDiscount(ctx context.Context, req service.DiscountPreviewRequest) (*pricing.Quote, error)
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	Download(ctx context.Context, req service.DownloadRequest) (*service.DownloadResult, error)
	ResolveArtifact(ctx context.Context, req service.ArtifactRequest) (string, error)

	SignIn(ctx context.Context, email, licenseKey string) (string, error)
	Overview(ctx context.Context, email string) (*model.Overview, error)
	Licenses(ctx context.Context, email string) ([]service.LicenseView, error)
	License(ctx context.Context, email, id string) (*service.LicenseDetail, error)
	Downloads(ctx context.Context, email string) (*service.DownloadsPage, error)
	Notifications(ctx context.Context, email string) ([]service.NotificationView, error)
	MarkNotificationRead(ctx context.Context, email, id string) error
	MarkAllNotificationsRead(ctx context.Context, email string) (int, error)
	DeleteNotification(ctx context.Context, email, id string) error
	Tickets(ctx context.Context, email string) ([]service.TicketView, error)
	Ticket(ctx context.Context, email, id string) (*service.TicketView, error)
	CreateTicket(ctx context.Context, email string, req service.TicketRequest) (*service.TicketView, error)
	AddTicketMessage(ctx context.Context, email, id string, req service.TicketMessageRequest) (*service.TicketView, error)
}

// Options настраивает сквозные middleware роутера.
type Options struct {
	CORSOrigins  []string
	RateLimitRPM int
	// TrustProxy разрешает брать адрес клиента из X-Forwarded-For и X-Real-IP.
	TrustProxy bool
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отвечает ошибкой сервиса; внутренние ошибки логируются, клиент видит общее сообщение.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := service.AsError(err)
	if e.Kind == service.KindInternal {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}

	writeJSON(w, e.Status(), errorResponse{
		Error:   string(e.Kind),
		Message: e.Message,
		Details: e.Details,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   string(service.KindValidation),
			Message: "Invalid request data",
			Details: map[string]any{"body": "must be valid JSON"},
		})
		return false
	}
	return true
}

func (h *Handler) email(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   string(service.KindUnauthorized),
			Message: "Authentication required",
		})
		return "", false
	}
	return email, true
}
