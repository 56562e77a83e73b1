// Package repository содержит реализации хранилища витрины: PostgreSQL и in-memory.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const licenseColumns = `id, key, plan_id, email, order_id, purchased_at, expires_at, active, download_count, max_downloads, last_download_at`

// PostgresRepository предоставляет доступ к хранилищу витрины в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт репозиторий и применяет миграции схемы.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateOrderWithLicense сохраняет заказ и выпущенную по нему лицензию в одной транзакции.
func (r *PostgresRepository) CreateOrderWithLicense(ctx context.Context, o *model.Order, l *model.License) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, plan_id, customer_name, email, company_name, payment_method,
		                     discount_code, discount_amount, base_price, final_price, currency,
		                     payment_intent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, string(o.PlanID), o.CustomerName, o.Email, o.CompanyName, string(o.PaymentMethod),
		o.DiscountCode, o.DiscountAmount, o.BasePrice, o.FinalPrice, o.Currency,
		o.PaymentIntentID, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO licenses (`+licenseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.Key, string(l.PlanID), l.Email, l.OrderID, l.PurchasedAt, l.ExpiresAt,
		l.Active, l.DownloadCount, l.MaxDownloads, l.LastDownloadAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "licenses_key_key" {
			return ErrDuplicateLicenseKey
		}
		return fmt.Errorf("insert license: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanLicense(row pgx.Row) (*model.License, error) {
	var (
		l      model.License
		planID string
	)
	err := row.Scan(&l.ID, &l.Key, &planID, &l.Email, &l.OrderID, &l.PurchasedAt, &l.ExpiresAt,
		&l.Active, &l.DownloadCount, &l.MaxDownloads, &l.LastDownloadAt)
	if err != nil {
		return nil, err
	}
	l.PlanID = model.PlanID(planID)
	return &l, nil
}

func (r *PostgresRepository) queryLicenses(ctx context.Context, query string, args ...any) ([]model.License, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select licenses: %w", err)
	}
	defer rows.Close()

	var res []model.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		res = append(res, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetLicenseByKey возвращает лицензию по ключу.
func (r *PostgresRepository) GetLicenseByKey(ctx context.Context, key string) (*model.License, error) {
	l, err := scanLicense(r.pool.QueryRow(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return l, nil
}

// GetLicenseByID возвращает лицензию по идентификатору.
func (r *PostgresRepository) GetLicenseByID(ctx context.Context, id string) (*model.License, error) {
	l, err := scanLicense(r.pool.QueryRow(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return l, nil
}

// ListLicensesByEmail возвращает лицензии покупателя, новые первыми.
func (r *PostgresRepository) ListLicensesByEmail(ctx context.Context, email string) ([]model.License, error) {
	return r.queryLicenses(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE email = $1 ORDER BY purchased_at DESC`,
		email,
	)
}

// ListLicensesExpiringBetween возвращает активные лицензии, срок которых истекает в интервале [from, to].
func (r *PostgresRepository) ListLicensesExpiringBetween(ctx context.Context, from, to time.Time) ([]model.License, error) {
	return r.queryLicenses(ctx,
		`SELECT `+licenseColumns+` FROM licenses
		 WHERE active AND expires_at BETWEEN $1 AND $2
		 ORDER BY expires_at`,
		from, to,
	)
}

// ConsumeDownload атомарно списывает одно скачивание с лицензии.
// Проверка квоты и срока и увеличение счётчика выполняются одним условным UPDATE,
// поэтому два параллельных запроса не могут занять один оставшийся слот.
func (r *PostgresRepository) ConsumeDownload(ctx context.Context, key string, now time.Time) (*model.License, error) {
	var consumed *model.License
	err := r.withRetry(ctx, func() error {
		l, err := scanLicense(r.pool.QueryRow(ctx,
			`UPDATE licenses
			 SET download_count = download_count + 1, last_download_at = $2
			 WHERE key = $1 AND active AND download_count < max_downloads AND expires_at >= $2
			 RETURNING `+licenseColumns,
			key, now,
		))
		if err != nil {
			return err
		}
		consumed = l
		return nil
	})
	if err == nil {
		return consumed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume download: %w", err)
	}

	l, err := r.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return nil, rejectReason(l, now)
}

// rejectReason объясняет, почему лицензию нельзя использовать для скачивания.
func rejectReason(l *model.License, now time.Time) error {
	switch {
	case !l.Active:
		return ErrLicenseInactive
	case l.DownloadCount >= l.MaxDownloads:
		return ErrDownloadQuotaExceeded
	case now.After(l.ExpiresAt):
		return ErrLicenseExpired
	default:
		return fmt.Errorf("license %s rejected without reason", l.ID)
	}
}

// RecordDownload сохраняет запись о скачивании.
func (r *PostgresRepository) RecordDownload(ctx context.Context, a model.DownloadActivity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO download_activities (id, license_id, version, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.LicenseID, a.Version, a.IP, a.UserAgent, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert download activity: %w", err)
	}
	return nil
}

// ListDownloads возвращает историю скачиваний по лицензии, новые первыми.
func (r *PostgresRepository) ListDownloads(ctx context.Context, licenseID string) ([]model.DownloadActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, license_id, version, ip, user_agent, created_at
		 FROM download_activities
		 WHERE license_id = $1
		 ORDER BY created_at DESC`,
		licenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("select downloads: %w", err)
	}
	defer rows.Close()

	var res []model.DownloadActivity
	for rows.Next() {
		var a model.DownloadActivity
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.Version, &a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateNotification сохраняет уведомление. Возвращает false, если уведомление
// с тем же ключом дедупликации уже существует.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) (bool, error) {
	var label, url, dedup *string
	if n.Action != nil {
		label, url = &n.Action.Label, &n.Action.URL
	}
	if n.DedupKey != "" {
		dedup = &n.DedupKey
	}

	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, email, category, title, body, action_label, action_url, read, dedup_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT DO NOTHING`,
		n.ID, n.Email, string(n.Category), n.Title, n.Body, label, url, n.Read, dedup, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListNotifications возвращает уведомления покупателя, новые первыми.
func (r *PostgresRepository) ListNotifications(ctx context.Context, email string) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, category, title, body, action_label, action_url, read, COALESCE(dedup_key, ''), created_at
		 FROM notifications
		 WHERE email = $1
		 ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var (
			n          model.Notification
			category   string
			label, url *string
		)
		if err := rows.Scan(&n.ID, &n.Email, &category, &n.Title, &n.Body, &label, &url, &n.Read, &n.DedupKey, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Category = model.NotificationCategory(category)
		if label != nil && url != nil {
			n.Action = &model.NotificationAction{Label: *label, URL: *url}
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, email, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND email = $2`,
		id, email,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления покупателя.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, email string) (int, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE email = $1 AND NOT read`,
		email,
	)
	if err != nil {
		return 0, fmt.Errorf("update notifications: %w", err)
	}
	return int(cmdTag.RowsAffected()), nil
}

// DeleteNotification удаляет уведомление покупателя.
func (r *PostgresRepository) DeleteNotification(ctx context.Context, email, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND email = $2`,
		id, email,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// CreateTicket сохраняет обращение вместе с первым сообщением.
func (r *PostgresRepository) CreateTicket(ctx context.Context, t *model.SupportTicket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO support_tickets (id, email, subject, description, priority, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Email, t.Subject, t.Description, string(t.Priority), string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	for _, m := range t.Messages {
		if err := insertTicketMessage(ctx, tx, t.ID, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertTicketMessage(ctx context.Context, tx pgx.Tx, ticketID string, m model.TicketMessage) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ticket_messages (id, ticket_id, from_agent, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, ticketID, m.FromAgent, m.Body, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket message: %w", err)
	}
	return nil
}

// ListTickets возвращает обращения покупателя с перепиской, недавно обновлённые первыми.
func (r *PostgresRepository) ListTickets(ctx context.Context, email string) ([]model.SupportTicket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, subject, description, priority, status, created_at, updated_at
		 FROM support_tickets
		 WHERE email = $1
		 ORDER BY updated_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}

	var tickets []model.SupportTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range tickets {
		msgs, err := r.ticketMessages(ctx, r.pool, tickets[i].ID)
		if err != nil {
			return nil, err
		}
		tickets[i].Messages = msgs
	}
	return tickets, nil
}

// GetTicket возвращает обращение покупателя с перепиской.
func (r *PostgresRepository) GetTicket(ctx context.Context, email, id string) (*model.SupportTicket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT id, email, subject, description, priority, status, created_at, updated_at
		 FROM support_tickets WHERE id = $1 AND email = $2`,
		id, email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}

	t.Messages, err = r.ticketMessages(ctx, r.pool, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AddTicketMessage добавляет сообщение покупателя в конец переписки.
// Решённое обращение переоткрывается, в закрытое писать нельзя.
func (r *PostgresRepository) AddTicketMessage(ctx context.Context, email, ticketID string, m model.TicketMessage) (*model.SupportTicket, error) {
	var updated *model.SupportTicket
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := scanTicket(tx.QueryRow(ctx,
			`SELECT id, email, subject, description, priority, status, created_at, updated_at
			 FROM support_tickets WHERE id = $1 AND email = $2 FOR UPDATE`,
			ticketID, email,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTicketNotFound
			}
			return fmt.Errorf("lock ticket: %w", err)
		}

		if t.Status == model.TicketClosed {
			return ErrTicketClosed
		}
		if t.Status == model.TicketResolved {
			t.Status = model.TicketOpen
		}
		t.UpdatedAt = m.CreatedAt

		if err := insertTicketMessage(ctx, tx, t.ID, m); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE support_tickets SET status = $2, updated_at = $3 WHERE id = $1`,
			t.ID, string(t.Status), t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}

		t.Messages, err = r.ticketMessages(ctx, tx, t.ID)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresRepository) ticketMessages(ctx context.Context, q querier, ticketID string) ([]model.TicketMessage, error) {
	rows, err := q.Query(ctx,
		`SELECT id, from_agent, body, created_at FROM ticket_messages WHERE ticket_id = $1 ORDER BY seq`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("select ticket messages: %w", err)
	}
	defer rows.Close()

	var res []model.TicketMessage
	for rows.Next() {
		var m model.TicketMessage
		if err := rows.Scan(&m.ID, &m.FromAgent, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket message: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func scanTicket(row pgx.Row) (*model.SupportTicket, error) {
	var (
		t                model.SupportTicket
		priority, status string
	)
	if err := row.Scan(&t.ID, &t.Email, &t.Subject, &t.Description, &priority, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = model.TicketPriority(priority)
	t.Status = model.TicketStatus(status)
	return &t, nil
}
