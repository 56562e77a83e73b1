package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
	"github.com/mmeshcher/shipfast-storefront/internal/repository"
)

// LicenseView описывает лицензию в личном кабинете.
type LicenseView struct {
	ID             string     `json:"id"`
	Key            string     `json:"key"`
	PlanID         string     `json:"planId"`
	PlanName       string     `json:"planName"`
	Status         string     `json:"status"`
	PurchaseDate   time.Time  `json:"purchaseDate"`
	ExpiryDate     time.Time  `json:"expiryDate"`
	DownloadCount  int        `json:"downloadCount"`
	MaxDownloads   int        `json:"maxDownloads"`
	LastDownloadAt *time.Time `json:"lastDownloadDate,omitempty"`
	GitHubAccess   bool       `json:"githubAccess"`
}

// DownloadView описывает запись истории скачиваний.
type DownloadView struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Date      time.Time `json:"date"`
}

// LicenseDetail содержит лицензию вместе с историей скачиваний.
type LicenseDetail struct {
	LicenseView
	Downloads []DownloadView `json:"downloads"`
}

// DownloadsPage содержит данные страницы загрузок: текущую лицензию и каталог сборок.
type DownloadsPage struct {
	License  *LicenseView    `json:"license"`
	Releases []model.Release `json:"releases"`
}

// NotificationView описывает уведомление в личном кабинете.
type NotificationView struct {
	ID      string                    `json:"id"`
	Type    string                    `json:"type"`
	Title   string                    `json:"title"`
	Message string                    `json:"message"`
	Date    time.Time                 `json:"date"`
	Read    bool                      `json:"read"`
	Action  *model.NotificationAction `json:"action,omitempty"`
}

// TicketMessageView описывает сообщение переписки.
type TicketMessageView struct {
	ID        string    `json:"id"`
	IsAgent   bool      `json:"isAgent"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketView описывает обращение в поддержку.
type TicketView struct {
	ID          string              `json:"id"`
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Messages    []TicketMessageView `json:"messages"`
}

// TicketRequest содержит данные нового обращения в поддержку.
type TicketRequest struct {
	Subject     string `json:"subject" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
	Priority    string `json:"priority" validate:"required,oneof=low medium high"`
}

// TicketMessageRequest содержит сообщение покупателя в обращение.
type TicketMessageRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// SignIn проверяет, что ключ принадлежит покупателю с указанным адресом, и возвращает адрес
// для сессии личного кабинета.
func (s *Service) SignIn(ctx context.Context, email, licenseKey string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	licenseKey = strings.TrimSpace(licenseKey)
	if email == "" || licenseKey == "" {
		return "", validationError(map[string]string{"email": "is required", "licenseKey": "is required"})
	}

	l, err := s.repo.GetLicenseByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return "", newError(KindUnauthorized, "Invalid email or license key")
		}
		return "", internalError(err)
	}
	if !strings.EqualFold(l.Email, email) {
		return "", newError(KindUnauthorized, "Invalid email or license key")
	}
	return l.Email, nil
}

func (s *Service) licenseView(l model.License) LicenseView {
	plan, _ := catalog.Plan(l.PlanID)

	status := "active"
	switch {
	case !l.Active:
		status = "inactive"
	case s.now().After(l.ExpiresAt):
		status = "expired"
	}

	return LicenseView{
		ID:             l.ID,
		Key:            l.Key,
		PlanID:         string(l.PlanID),
		PlanName:       plan.Name,
		Status:         status,
		PurchaseDate:   l.PurchasedAt,
		ExpiryDate:     l.ExpiresAt,
		DownloadCount:  l.DownloadCount,
		MaxDownloads:   l.MaxDownloads,
		LastDownloadAt: l.LastDownloadAt,
		GitHubAccess:   plan.GitHubAccess,
	}
}

// Overview возвращает сводные показатели личного кабинета.
func (s *Service) Overview(ctx context.Context, email string) (*model.Overview, error) {
	licenses, err := s.repo.ListLicensesByEmail(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}
	tickets, err := s.repo.ListTickets(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}
	notifications, err := s.repo.ListNotifications(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	var o model.Overview
	now := s.now()
	for _, l := range licenses {
		if l.Active && !now.After(l.ExpiresAt) {
			o.ActiveLicenses++
		}
		o.TotalDownloads += l.DownloadCount
	}
	for _, t := range tickets {
		if t.Status == model.TicketOpen || t.Status == model.TicketInProgress {
			o.OpenTickets++
		}
	}
	for _, n := range notifications {
		if !n.Read {
			o.UnreadNotifications++
		}
	}
	return &o, nil
}

// Licenses возвращает лицензии покупателя.
func (s *Service) Licenses(ctx context.Context, email string) ([]LicenseView, error) {
	licenses, err := s.repo.ListLicensesByEmail(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	res := make([]LicenseView, 0, len(licenses))
	for _, l := range licenses {
		res = append(res, s.licenseView(l))
	}
	return res, nil
}

// License возвращает лицензию покупателя с историей скачиваний.
func (s *Service) License(ctx context.Context, email, id string) (*LicenseDetail, error) {
	l, err := s.repo.GetLicenseByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return nil, newError(KindNotFound, "License not found")
		}
		return nil, internalError(err)
	}
	if l.Email != email {
		return nil, newError(KindNotFound, "License not found")
	}

	downloads, err := s.repo.ListDownloads(ctx, l.ID)
	if err != nil {
		return nil, internalError(err)
	}

	d := &LicenseDetail{LicenseView: s.licenseView(*l), Downloads: make([]DownloadView, 0, len(downloads))}
	for _, a := range downloads {
		d.Downloads = append(d.Downloads, DownloadView{
			ID:        a.ID,
			Version:   a.Version,
			IP:        a.IP,
			UserAgent: a.UserAgent,
			Date:      a.CreatedAt,
		})
	}
	return d, nil
}

// Downloads возвращает действующую лицензию покупателя и каталог сборок.
func (s *Service) Downloads(ctx context.Context, email string) (*DownloadsPage, error) {
	licenses, err := s.repo.ListLicensesByEmail(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	page := &DownloadsPage{Releases: catalog.Releases()}
	now := s.now()
	for _, l := range licenses {
		if l.Usable(now) {
			v := s.licenseView(l)
			page.License = &v
			break
		}
	}
	return page, nil
}

// Notifications возвращает уведомления покупателя.
func (s *Service) Notifications(ctx context.Context, email string) ([]NotificationView, error) {
	list, err := s.repo.ListNotifications(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	res := make([]NotificationView, 0, len(list))
	for _, n := range list {
		res = append(res, NotificationView{
			ID:      n.ID,
			Type:    string(n.Category),
			Title:   n.Title,
			Message: n.Body,
			Date:    n.CreatedAt,
			Read:    n.Read,
			Action:  n.Action,
		})
	}
	return res, nil
}

func notificationErr(err error) error {
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return newError(KindNotFound, "Notification not found")
	}
	return internalError(err)
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, email, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, email, id); err != nil {
		return notificationErr(err)
	}
	return nil
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления и возвращает их число.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, email string) (int, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, email)
	if err != nil {
		return 0, internalError(err)
	}
	return n, nil
}

// DeleteNotification удаляет уведомление.
func (s *Service) DeleteNotification(ctx context.Context, email, id string) error {
	if err := s.repo.DeleteNotification(ctx, email, id); err != nil {
		return notificationErr(err)
	}
	return nil
}

func ticketView(t model.SupportTicket) TicketView {
	v := TicketView{
		ID:          t.ID,
		Subject:     t.Subject,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Messages:    make([]TicketMessageView, 0, len(t.Messages)),
	}
	for _, m := range t.Messages {
		v.Messages = append(v.Messages, TicketMessageView{
			ID:        m.ID,
			IsAgent:   m.FromAgent,
			Content:   m.Body,
			Timestamp: m.CreatedAt,
		})
	}
	return v
}

func ticketErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrTicketNotFound):
		return newError(KindNotFound, "Ticket not found")
	case errors.Is(err, repository.ErrTicketClosed):
		return &Error{
			Kind:    KindValidation,
			Message: "Ticket is closed",
			Details: map[string]any{"status": string(model.TicketClosed)},
			Err:     err,
		}
	default:
		return internalError(err)
	}
}

// Tickets возвращает обращения покупателя.
func (s *Service) Tickets(ctx context.Context, email string) ([]TicketView, error) {
	list, err := s.repo.ListTickets(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	res := make([]TicketView, 0, len(list))
	for _, t := range list {
		res = append(res, ticketView(t))
	}
	return res, nil
}

// Ticket возвращает обращение покупателя.
func (s *Service) Ticket(ctx context.Context, email, id string) (*TicketView, error) {
	t, err := s.repo.GetTicket(ctx, email, id)
	if err != nil {
		return nil, ticketErr(err)
	}
	v := ticketView(*t)
	return &v, nil
}

// CreateTicket открывает обращение. Описание становится первым сообщением переписки.
func (s *Service) CreateTicket(ctx context.Context, email string, req TicketRequest) (*TicketView, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Description = strings.TrimSpace(req.Description)
	if fields := s.validator.Struct(req); len(fields) > 0 {
		return nil, validationError(fields)
	}

	now := s.now().UTC()
	t := &model.SupportTicket{
		ID:          "ticket_" + uuid.NewString(),
		Email:       email,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    model.TicketPriority(req.Priority),
		Status:      model.TicketOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
		Messages: []model.TicketMessage{
			{ID: "msg_" + uuid.NewString(), Body: req.Description, CreatedAt: now},
		},
	}
	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, internalError(err)
	}

	s.logger.Info("ticket created", zap.String("ticket_id", t.ID), zap.String("priority", req.Priority))
	v := ticketView(*t)
	return &v, nil
}

// AddTicketMessage добавляет сообщение покупателя в обращение.
func (s *Service) AddTicketMessage(ctx context.Context, email, id string, req TicketMessageRequest) (*TicketView, error) {
	req.Body = strings.TrimSpace(req.Body)
	if fields := s.validator.Struct(req); len(fields) > 0 {
		return nil, validationError(fields)
	}

	t, err := s.repo.AddTicketMessage(ctx, email, id, model.TicketMessage{
		ID:        "msg_" + uuid.NewString(),
		Body:      req.Body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, ticketErr(err)
	}
	v := ticketView(*t)
	return &v, nil
}
