// Package events публикует доменные события витрины в NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Темы событий.
const (
	SubjectOrderCreated     = "storefront.order.created"
	SubjectDownloadRecorded = "storefront.download.recorded"
)

// OrderCreated публикуется после сохранения заказа и лицензии.
type OrderCreated struct {
	OrderID    string    `json:"order_id"`
	PlanID     string    `json:"plan_id"`
	Email      string    `json:"email"`
	FinalPrice int       `json:"final_price"`
	Currency   string    `json:"currency"`
	LicenseID  string    `json:"license_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// DownloadRecorded публикуется после выдачи ссылки на скачивание.
type DownloadRecorded struct {
	LicenseID     string    `json:"license_id"`
	Version       string    `json:"version"`
	DownloadCount int       `json:"download_count"`
	IP            string    `json:"ip"`
	UserAgent     string    `json:"user_agent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher отправляет события во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close()
}

// NATSPublisher публикует события в NATS в формате JSON.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher подключается к NATS по указанному адресу.
func NewNATSPublisher(url string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("shipfast-storefront"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))

	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Publish сериализует событие и отправляет его в тему subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Close сбрасывает буфер и закрывает соединение.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop отбрасывает события, если шина не настроена.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

func (Nop) Close() {}
