package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// MemoryRepository хранит данные витрины в памяти процесса.
// Используется, когда строка подключения к БД не задана, и в тестах.
type MemoryRepository struct {
	mu            sync.Mutex
	orders        map[string]model.Order
	licenses      map[string]*model.License // по ID
	keys          map[string]string         // ключ -> ID лицензии
	downloads     []model.DownloadActivity
	notifications []*model.Notification
	tickets       map[string]*model.SupportTicket
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:   make(map[string]model.Order),
		licenses: make(map[string]*model.License),
		keys:     make(map[string]string),
		tickets:  make(map[string]*model.SupportTicket),
	}
}

// Close ничего не делает, хранилище в памяти не держит внешних ресурсов.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateOrderWithLicense сохраняет заказ и лицензию атомарно.
func (r *MemoryRepository) CreateOrderWithLicense(_ context.Context, o *model.Order, l *model.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[l.Key]; ok {
		return ErrDuplicateLicenseKey
	}

	r.orders[o.ID] = *o
	cp := *l
	r.licenses[cp.ID] = &cp
	r.keys[cp.Key] = cp.ID
	return nil
}

// GetLicenseByKey возвращает копию лицензии по ключу.
func (r *MemoryRepository) GetLicenseByKey(_ context.Context, key string) (*model.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.keys[key]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	cp := *r.licenses[id]
	return &cp, nil
}

// GetLicenseByID возвращает копию лицензии по идентификатору.
func (r *MemoryRepository) GetLicenseByID(_ context.Context, id string) (*model.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.licenses[id]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	cp := *l
	return &cp, nil
}

// ListLicensesByEmail возвращает лицензии покупателя, новые первыми.
func (r *MemoryRepository) ListLicensesByEmail(_ context.Context, email string) ([]model.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.License
	for _, l := range r.licenses {
		if l.Email == email {
			res = append(res, *l)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PurchasedAt.After(res[j].PurchasedAt) })
	return res, nil
}

// ListLicensesExpiringBetween возвращает активные лицензии, истекающие в интервале [from, to].
func (r *MemoryRepository) ListLicensesExpiringBetween(_ context.Context, from, to time.Time) ([]model.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.License
	for _, l := range r.licenses {
		if l.Active && !l.ExpiresAt.Before(from) && !l.ExpiresAt.After(to) {
			res = append(res, *l)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpiresAt.Before(res[j].ExpiresAt) })
	return res, nil
}

// ConsumeDownload проверяет лицензию и увеличивает счётчик скачиваний под одной блокировкой.
func (r *MemoryRepository) ConsumeDownload(_ context.Context, key string, now time.Time) (*model.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.keys[key]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	l := r.licenses[id]
	if !l.Usable(now) {
		return nil, rejectReason(l, now)
	}

	l.DownloadCount++
	ts := now
	l.LastDownloadAt = &ts

	cp := *l
	return &cp, nil
}

// RecordDownload сохраняет запись о скачивании.
func (r *MemoryRepository) RecordDownload(_ context.Context, a model.DownloadActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.downloads = append(r.downloads, a)
	return nil
}

// ListDownloads возвращает историю скачиваний по лицензии, новые первыми.
func (r *MemoryRepository) ListDownloads(_ context.Context, licenseID string) ([]model.DownloadActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.DownloadActivity
	for i := len(r.downloads) - 1; i >= 0; i-- {
		if r.downloads[i].LicenseID == licenseID {
			res = append(res, r.downloads[i])
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// CreateNotification сохраняет уведомление, если его ключ дедупликации ещё не встречался.
func (r *MemoryRepository) CreateNotification(_ context.Context, n *model.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.DedupKey != "" {
		for _, existing := range r.notifications {
			if existing.DedupKey == n.DedupKey {
				return false, nil
			}
		}
	}

	cp := *n
	r.notifications = append(r.notifications, &cp)
	return true, nil
}

// ListNotifications возвращает уведомления покупателя, новые первыми.
func (r *MemoryRepository) ListNotifications(_ context.Context, email string) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Notification
	for _, n := range r.notifications {
		if n.Email == email {
			res = append(res, *n)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepository) findNotification(email, id string) (int, bool) {
	for i, n := range r.notifications {
		if n.ID == id && n.Email == email {
			return i, true
		}
	}
	return 0, false
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (r *MemoryRepository) MarkNotificationRead(_ context.Context, email, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.findNotification(email, id)
	if !ok {
		return ErrNotificationNotFound
	}
	r.notifications[i].Read = true
	return nil
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления покупателя.
func (r *MemoryRepository) MarkAllNotificationsRead(_ context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, n := range r.notifications {
		if n.Email == email && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

// DeleteNotification удаляет уведомление покупателя.
func (r *MemoryRepository) DeleteNotification(_ context.Context, email, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.findNotification(email, id)
	if !ok {
		return ErrNotificationNotFound
	}
	r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
	return nil
}

func copyTicket(t *model.SupportTicket) model.SupportTicket {
	cp := *t
	cp.Messages = append([]model.TicketMessage(nil), t.Messages...)
	return cp
}

// CreateTicket сохраняет обращение.
func (r *MemoryRepository) CreateTicket(_ context.Context, t *model.SupportTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := copyTicket(t)
	r.tickets[cp.ID] = &cp
	return nil
}

// ListTickets возвращает обращения покупателя, недавно обновлённые первыми.
func (r *MemoryRepository) ListTickets(_ context.Context, email string) ([]model.SupportTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.SupportTicket
	for _, t := range r.tickets {
		if t.Email == email {
			res = append(res, copyTicket(t))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// GetTicket возвращает обращение покупателя.
func (r *MemoryRepository) GetTicket(_ context.Context, email, id string) (*model.SupportTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok || t.Email != email {
		return nil, ErrTicketNotFound
	}
	cp := copyTicket(t)
	return &cp, nil
}

// AddTicketMessage добавляет сообщение покупателя в переписку.
func (r *MemoryRepository) AddTicketMessage(_ context.Context, email, ticketID string, m model.TicketMessage) (*model.SupportTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[ticketID]
	if !ok || t.Email != email {
		return nil, ErrTicketNotFound
	}
	if t.Status == model.TicketClosed {
		return nil, ErrTicketClosed
	}
	if t.Status == model.TicketResolved {
		t.Status = model.TicketOpen
	}
	t.Messages = append(t.Messages, m)
	t.UpdatedAt = m.CreatedAt

	cp := copyTicket(t)
	return &cp, nil
}
