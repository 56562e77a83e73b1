package repository

import (
	"time"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

const day = 24 * time.Hour

// NewSeededMemoryRepository создаёт хранилище в памяти с демонстрационными данными.
// Даты отсчитываются от now, поэтому демо-лицензии остаются действующими.
func NewSeededMemoryRepository(now time.Time) *MemoryRepository {
	r := NewMemoryRepository()

	prof := &model.License{
		ID:            "lic_123456",
		Key:           "SHIP-PROF-1234-5678-9ABC",
		PlanID:        model.PlanProfessional,
		Email:         "customer@example.com",
		PurchasedAt:   now.Add(-30 * day),
		ExpiresAt:     now.Add(-30*day).AddDate(0, 12, 0),
		Active:        true,
		DownloadCount: 3,
		MaxDownloads:  999,
	}
	pers := &model.License{
		ID:            "lic_789012",
		Key:           "SHIP-PERS-9876-5432-DCBA",
		PlanID:        model.PlanPersonal,
		Email:         "user@example.com",
		PurchasedAt:   now.Add(-60 * day),
		ExpiresAt:     now.Add(-60*day).AddDate(0, 6, 0),
		Active:        true,
		DownloadCount: 1,
		MaxDownloads:  5,
	}
	for _, l := range []*model.License{prof, pers} {
		r.licenses[l.ID] = l
		r.keys[l.Key] = l.ID
	}

	r.notifications = []*model.Notification{
		{
			ID:        "notif_1",
			Email:     prof.Email,
			Category:  model.NotificationInfo,
			Title:     "New Version Available",
			Body:      "ShipFast v1.2.0 is now available with new features and bug fixes.",
			CreatedAt: now.Add(-day),
			Action:    &model.NotificationAction{Label: "Download Now", URL: "/dashboard/downloads"},
		},
		{
			ID:        "notif_2",
			Email:     prof.Email,
			Category:  model.NotificationSuccess,
			Title:     "License Activated",
			Body:      "Your Professional license has been successfully activated.",
			CreatedAt: now.Add(-7 * day),
			Read:      true,
		},
	}

	tickets := []*model.SupportTicket{
		{
			ID:          "ticket_1",
			Email:       prof.Email,
			Subject:     "Issue with installation",
			Description: "I'm having trouble installing the boilerplate on Windows.",
			Priority:    model.TicketHigh,
			Status:      model.TicketInProgress,
			CreatedAt:   now.Add(-2 * day),
			UpdatedAt:   now.Add(-day),
			Messages: []model.TicketMessage{
				{ID: "msg_1", Body: "I'm getting an error that says \"Cannot find module 'next'\". Reinstalling does not help.", CreatedAt: now.Add(-2 * day)},
				{ID: "msg_2", FromAgent: true, Body: "Can you confirm that you ran `npm install` in the project directory?", CreatedAt: now.Add(-36 * time.Hour)},
				{ID: "msg_3", Body: "Yes, I did run npm install but it seems some dependencies might be missing.", CreatedAt: now.Add(-29 * time.Hour)},
				{ID: "msg_4", FromAgent: true, Body: "Let's try a clean install: remove node_modules and package-lock.json, then run npm install.", CreatedAt: now.Add(-day)},
			},
		},
		{
			ID:          "ticket_2",
			Email:       prof.Email,
			Subject:     "How to customize the theme",
			Description: "I want to modify the default color scheme",
			Priority:    model.TicketMedium,
			Status:      model.TicketOpen,
			CreatedAt:   now.Add(-5 * day),
			UpdatedAt:   now.Add(-5 * day),
			Messages: []model.TicketMessage{
				{ID: "msg_5", Body: "The docs mention tailwind.config.js but I'm not seeing how to update the theme.", CreatedAt: now.Add(-5 * day)},
			},
		},
		{
			ID:          "ticket_3",
			Email:       prof.Email,
			Subject:     "API Authentication Question",
			Description: "Need help implementing custom auth provider",
			Priority:    model.TicketLow,
			Status:      model.TicketResolved,
			CreatedAt:   now.Add(-10 * day),
			UpdatedAt:   now.Add(-8 * day),
			Messages: []model.TicketMessage{
				{ID: "msg_6", Body: "I want to use my own authentication service with NextAuth.", CreatedAt: now.Add(-10 * day)},
				{ID: "msg_7", FromAgent: true, Body: "You can create a custom provider by following the NextAuth documentation.", CreatedAt: now.Add(-9 * day)},
				{ID: "msg_8", Body: "Thanks for the help! I got it working now.", CreatedAt: now.Add(-8*day - 12*time.Hour)},
				{ID: "msg_9", FromAgent: true, Body: "Great to hear! Let us know if you need anything else.", CreatedAt: now.Add(-8 * day)},
			},
		},
	}
	for _, t := range tickets {
		r.tickets[t.ID] = t
	}

	return r
}
