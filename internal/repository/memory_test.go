package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

func newLicense(key string, count, max int, now time.Time) *model.License {
	return &model.License{
		ID:            "lic_" + key,
		Key:           key,
		PlanID:        model.PlanPersonal,
		Email:         "buyer@example.com",
		PurchasedAt:   now.Add(-time.Hour),
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
		Active:        true,
		DownloadCount: count,
		MaxDownloads:  max,
	}
}

func TestMemoryRepository_ConsumeDownload(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r := NewMemoryRepository()

	require.NoError(t, r.CreateOrderWithLicense(ctx, &model.Order{ID: "ORD-1"}, newLicense("KEY-OK", 4, 5, now)))

	l, err := r.ConsumeDownload(ctx, "KEY-OK", now)
	require.NoError(t, err)
	assert.Equal(t, 5, l.DownloadCount)
	require.NotNil(t, l.LastDownloadAt)
	assert.True(t, l.LastDownloadAt.Equal(now))

	_, err = r.ConsumeDownload(ctx, "KEY-OK", now)
	assert.ErrorIs(t, err, ErrDownloadQuotaExceeded)

	stored, err := r.GetLicenseByKey(ctx, "KEY-OK")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.DownloadCount)

	_, err = r.ConsumeDownload(ctx, "KEY-MISSING", now)
	assert.ErrorIs(t, err, ErrLicenseNotFound)
}

func TestMemoryRepository_ConsumeDownloadRejections(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r := NewMemoryRepository()

	expired := newLicense("KEY-EXPIRED", 0, 5, now)
	expired.ExpiresAt = now.Add(-time.Second)
	inactive := newLicense("KEY-INACTIVE", 0, 5, now)
	inactive.Active = false
	both := newLicense("KEY-BOTH", 5, 5, now)
	both.ExpiresAt = now.Add(-time.Second)

	for i, l := range []*model.License{expired, inactive, both} {
		require.NoError(t, r.CreateOrderWithLicense(ctx, &model.Order{ID: string(rune('a' + i))}, l))
	}

	tests := []struct {
		key  string
		want error
	}{
		{"KEY-EXPIRED", ErrLicenseExpired},
		{"KEY-INACTIVE", ErrLicenseInactive},
		{"KEY-BOTH", ErrDownloadQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := r.ConsumeDownload(ctx, tt.key, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	l, err := r.GetLicenseByKey(ctx, "KEY-EXPIRED")
	require.NoError(t, err)
	assert.Equal(t, 0, l.DownloadCount)
}

func TestMemoryRepository_ConsumeDownloadConcurrent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r := NewMemoryRepository()

	const (
		workers   = 50
		remaining = 3
	)
	require.NoError(t, r.CreateOrderWithLicense(ctx, &model.Order{ID: "ORD-1"}, newLicense("KEY-RACE", 5-remaining, 5, now)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ConsumeDownload(ctx, "KEY-RACE", now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDownloadQuotaExceeded):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, remaining, successes)
	assert.Equal(t, workers-remaining, rejected)

	l, err := r.GetLicenseByKey(ctx, "KEY-RACE")
	require.NoError(t, err)
	assert.Equal(t, 5, l.DownloadCount)
}

func TestMemoryRepository_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRepository()

	require.NoError(t, r.CreateOrderWithLicense(ctx, &model.Order{ID: "ORD-1"}, newLicense("KEY-DUP", 0, 5, now)))

	second := newLicense("KEY-DUP", 0, 5, now)
	second.ID = "lic_other"
	err := r.CreateOrderWithLicense(ctx, &model.Order{ID: "ORD-2"}, second)
	assert.ErrorIs(t, err, ErrDuplicateLicenseKey)

	_, err = r.GetLicenseByID(ctx, "lic_other")
	assert.ErrorIs(t, err, ErrLicenseNotFound)
}

func TestMemoryRepository_Notifications(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRepository()

	created, err := r.CreateNotification(ctx, &model.Notification{ID: "n1", Email: "a@example.com", DedupKey: "expiring:lic_1", CreatedAt: now})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.CreateNotification(ctx, &model.Notification{ID: "n2", Email: "a@example.com", DedupKey: "expiring:lic_1", CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, created)

	_, err = r.CreateNotification(ctx, &model.Notification{ID: "n3", Email: "a@example.com", CreatedAt: now.Add(time.Minute)})
	require.NoError(t, err)

	list, err := r.ListNotifications(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	assert.ErrorIs(t, r.MarkNotificationRead(ctx, "b@example.com", "n1"), ErrNotificationNotFound)
	require.NoError(t, r.MarkNotificationRead(ctx, "a@example.com", "n1"))

	updated, err := r.MarkAllNotificationsRead(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.NoError(t, r.DeleteNotification(ctx, "a@example.com", "n1"))
	assert.ErrorIs(t, r.DeleteNotification(ctx, "a@example.com", "n1"), ErrNotificationNotFound)
}

func TestMemoryRepository_TicketMessages(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewSeededMemoryRepository(now)

	ticket, err := r.AddTicketMessage(ctx, "customer@example.com", "ticket_3", model.TicketMessage{ID: "m_new", Body: "One more question", CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, model.TicketOpen, ticket.Status)
	assert.Equal(t, "m_new", ticket.Messages[len(ticket.Messages)-1].ID)
	assert.Len(t, ticket.Messages, 5)

	_, err = r.AddTicketMessage(ctx, "user@example.com", "ticket_3", model.TicketMessage{ID: "m_x", CreatedAt: now})
	assert.ErrorIs(t, err, ErrTicketNotFound)

	r.tickets["ticket_2"].Status = model.TicketClosed
	_, err = r.AddTicketMessage(ctx, "customer@example.com", "ticket_2", model.TicketMessage{ID: "m_y", CreatedAt: now})
	assert.ErrorIs(t, err, ErrTicketClosed)
}

func TestSeededMemoryRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewSeededMemoryRepository(now)

	l, err := r.GetLicenseByKey(ctx, "SHIP-PROF-1234-5678-9ABC")
	require.NoError(t, err)
	assert.True(t, l.Usable(now))
	assert.Equal(t, "lic_123456", l.ID)

	tickets, err := r.ListTickets(ctx, "customer@example.com")
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "ticket_1", tickets[0].ID)
}
