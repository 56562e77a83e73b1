package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// newTestPostgres подключается к базе из DATABASE_URI; без неё тесты пропускаются.
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	r, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// insertLicense сохраняет лицензию с уникальным ключом и возвращает этот ключ.
func insertLicense(t *testing.T, r *PostgresRepository, count, max int, now time.Time, mutate func(*model.License)) string {
	t.Helper()

	id := uuid.NewString()
	l := newLicense("KEY-"+id, count, max, now)
	l.ID = "lic_" + id
	l.OrderID = "ORD-" + id
	if mutate != nil {
		mutate(l)
	}

	o := &model.Order{
		ID:              l.OrderID,
		PlanID:          l.PlanID,
		CustomerName:    "Jane Doe",
		Email:           l.Email,
		PaymentMethod:   model.PaymentCard,
		BasePrice:       99,
		FinalPrice:      99,
		Currency:        "USD",
		PaymentIntentID: "pi_" + id,
		CreatedAt:       now,
	}
	require.NoError(t, r.CreateOrderWithLicense(context.Background(), o, l))
	return l.Key
}

func TestPostgresRepository_ConsumeDownload(t *testing.T) {
	r := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := insertLicense(t, r, 4, 5, now, nil)

	l, err := r.ConsumeDownload(ctx, key, now)
	require.NoError(t, err)
	assert.Equal(t, 5, l.DownloadCount)
	require.NotNil(t, l.LastDownloadAt)
	assert.True(t, l.LastDownloadAt.Equal(now))

	_, err = r.ConsumeDownload(ctx, key, now)
	assert.ErrorIs(t, err, ErrDownloadQuotaExceeded)

	_, err = r.ConsumeDownload(ctx, "KEY-"+uuid.NewString(), now)
	assert.ErrorIs(t, err, ErrLicenseNotFound)
}

func TestPostgresRepository_ConsumeDownloadRejections(t *testing.T) {
	r := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		count  int
		mutate func(*model.License)
		want   error
	}{
		{"expired", 0, func(l *model.License) { l.ExpiresAt = now.Add(-time.Second) }, ErrLicenseExpired},
		{"inactive", 0, func(l *model.License) { l.Active = false }, ErrLicenseInactive},
		{"quota before expiry", 5, func(l *model.License) { l.ExpiresAt = now.Add(-time.Second) }, ErrDownloadQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := insertLicense(t, r, tt.count, 5, now, tt.mutate)

			_, err := r.ConsumeDownload(ctx, key, now)
			assert.ErrorIs(t, err, tt.want)

			l, err := r.GetLicenseByKey(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, tt.count, l.DownloadCount)
		})
	}
}

func TestPostgresRepository_ConsumeDownloadConcurrent(t *testing.T) {
	r := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const (
		workers   = 20
		remaining = 3
	)
	key := insertLicense(t, r, 5-remaining, 5, now, nil)

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
			_, err := r.ConsumeDownload(ctx, key, now)
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

	l, err := r.GetLicenseByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, l.DownloadCount)
}

func TestPostgresRepository_DuplicateKey(t *testing.T) {
	r := newTestPostgres(t)
	now := time.Now().UTC()

	key := insertLicense(t, r, 0, 5, now, nil)

	id := uuid.NewString()
	dup := newLicense(key, 0, 5, now)
	dup.ID = "lic_" + id
	err := r.CreateOrderWithLicense(context.Background(), &model.Order{
		ID:              "ORD-" + id,
		PlanID:          dup.PlanID,
		CustomerName:    "Jane Doe",
		Email:           dup.Email,
		PaymentMethod:   model.PaymentCard,
		Currency:        "USD",
		PaymentIntentID: "pi_" + id,
		CreatedAt:       now,
	}, dup)
	assert.ErrorIs(t, err, ErrDuplicateLicenseKey)
}
