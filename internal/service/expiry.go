package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// ExpiryWarningWindow определяет, за сколько до окончания лицензии покупатель получает предупреждение.
const ExpiryWarningWindow = 15 * 24 * time.Hour

// StartExpiryNotifier периодически ищет лицензии, срок которых скоро истекает, и создаёт
// для каждой одно предупреждение. Блокируется до отмены ctx.
func (s *Service) StartExpiryNotifier(ctx context.Context) {
	s.scanExpiringLicenses(ctx)

	ticker := time.NewTicker(s.cfg.ExpiryScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanExpiringLicenses(ctx)
		}
	}
}

func (s *Service) scanExpiringLicenses(ctx context.Context) {
	now := s.now().UTC()

	licenses, err := s.repo.ListLicensesExpiringBetween(ctx, now, now.Add(ExpiryWarningWindow))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("list expiring licenses error", zap.Error(err))
		}
		return
	}

	created := 0
	for _, l := range licenses {
		n := expiryNotification(l, now)
		ok, err := s.repo.CreateNotification(ctx, n)
		if err != nil {
			s.logger.Warn("create expiry notification error", zap.Error(err), zap.String("license_id", l.ID))
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		s.logger.Info("expiry notifications created", zap.Int("count", created))
	}
}

func expiryNotification(l model.License, now time.Time) *model.Notification {
	plan, _ := catalog.Plan(l.PlanID)
	days := int(math.Ceil(l.ExpiresAt.Sub(now).Hours() / 24))

	return &model.Notification{
		ID:        "notif_" + uuid.NewString(),
		Email:     l.Email,
		Category:  model.NotificationWarning,
		Title:     "License Expiring Soon",
		Body:      fmt.Sprintf("Your %s license will expire in %d days. Renew now to maintain access.", plan.Name, days),
		CreatedAt: now,
		Action:    &model.NotificationAction{Label: "Renew License", URL: "/pricing"},
		DedupKey:  "expiring:" + l.ID,
	}
}
