// Package model содержит доменные сущности витрины ShipFast.
package model

import "time"

// PlanID идентифицирует тарифный план.
type PlanID string

const (
	PlanPersonal     PlanID = "personal"
	PlanProfessional PlanID = "professional"
	PlanEnterprise   PlanID = "enterprise"
)

// Plan описывает позицию каталога тарифов. Каталог неизменяем после старта процесса.
type Plan struct {
	ID           PlanID   `json:"id"`
	Name         string   `json:"name"`
	Price        int      `json:"price"`
	Features     []string `json:"features"`
	UpdateMonths int      `json:"updateMonths"` // 0 означает пожизненные обновления
	MaxDownloads int      `json:"maxDownloads"`
	GitHubAccess bool     `json:"githubAccess"`
	SupportLevel string   `json:"supportLevel"`
	KeyPrefix    string   `json:"-"`
}

// ExpiresAt вычисляет дату окончания права на обновления для покупки в момент purchasedAt.
func (p Plan) ExpiresAt(purchasedAt time.Time) time.Time {
	if p.UpdateMonths == 0 {
		return purchasedAt.AddDate(LifetimeYears, 0, 0)
	}
	return purchasedAt.AddDate(0, p.UpdateMonths, 0)
}

// LifetimeYears задаёт горизонт «пожизненной» лицензии.
const LifetimeYears = 100

// DiscountKind описывает способ расчёта скидки.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFlat       DiscountKind = "flat"
)

// DiscountCode описывает промокод из фиксированной таблицы.
type DiscountCode struct {
	Code  string
	Kind  DiscountKind
	Value int
	Valid bool
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentPayPal PaymentMethod = "paypal"
)

// Order описывает оформленный заказ. После создания не изменяется.
type Order struct {
	ID              string
	PlanID          PlanID
	CustomerName    string
	Email           string
	CompanyName     string
	PaymentMethod   PaymentMethod
	DiscountCode    string
	DiscountAmount  int
	BasePrice       int
	FinalPrice      int
	Currency        string
	PaymentIntentID string
	CreatedAt       time.Time
}

// License описывает лицензию покупателя и её квоту скачиваний.
type License struct {
	ID             string
	Key            string
	PlanID         PlanID
	Email          string
	OrderID        string
	PurchasedAt    time.Time
	ExpiresAt      time.Time
	Active         bool
	DownloadCount  int
	MaxDownloads   int
	LastDownloadAt *time.Time
}

// Usable сообщает, может ли лицензия быть использована для скачивания в момент now.
func (l License) Usable(now time.Time) bool {
	return l.Active && !now.After(l.ExpiresAt) && l.DownloadCount < l.MaxDownloads
}

// DownloadActivity фиксирует факт выдачи ссылки на скачивание.
type DownloadActivity struct {
	ID        string
	LicenseID string
	Version   string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Release описывает опубликованную сборку продукта.
type Release struct {
	Version    string    `json:"version"`
	ReleasedAt time.Time `json:"releaseDate"`
	Latest     bool      `json:"isLatest"`
	Size       string    `json:"size"`
	Changelog  []string  `json:"changelog"`
}

// NotificationCategory описывает тип уведомления.
type NotificationCategory string

const (
	NotificationWarning NotificationCategory = "warning"
	NotificationInfo    NotificationCategory = "info"
	NotificationSuccess NotificationCategory = "success"
	NotificationError   NotificationCategory = "error"
)

// NotificationAction описывает ссылку-призыв к действию.
type NotificationAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notification описывает уведомление в личном кабинете.
type Notification struct {
	ID        string
	Email     string
	Category  NotificationCategory
	Title     string
	Body      string
	CreatedAt time.Time
	Read      bool
	Action    *NotificationAction
	// DedupKey не даёт фоновым задачам создавать одно и то же уведомление повторно.
	DedupKey string
}

// TicketPriority описывает приоритет обращения.
type TicketPriority string

const (
	TicketLow    TicketPriority = "low"
	TicketMedium TicketPriority = "medium"
	TicketHigh   TicketPriority = "high"
)

// TicketStatus описывает статус обращения.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// TicketMessage описывает сообщение в переписке по обращению.
type TicketMessage struct {
	ID        string
	FromAgent bool
	Body      string
	CreatedAt time.Time
}

// SupportTicket описывает обращение в поддержку. Сообщения только добавляются.
type SupportTicket struct {
	ID          string
	Email       string
	Subject     string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Messages    []TicketMessage
}

// Overview содержит сводные показатели личного кабинета.
type Overview struct {
	ActiveLicenses      int `json:"activeLicenses"`
	TotalDownloads      int `json:"totalDownloads"`
	OpenTickets         int `json:"openTickets"`
	UnreadNotifications int `json:"unreadNotifications"`
}
