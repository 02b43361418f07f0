package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxRepository struct {
	store *Store
}

type outboxRow struct {
	ID            string    `db:"id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
}

// NewOutboxRepository создаёт SQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return store.Outbox()
}

// Enqueue пишет событие в транзакции из ctx: оно фиксируется вместе с заказом.
// seq задаёт порядок публикации независимо от точности часов.
func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.Payload == nil {
		msg.Payload = []byte("{}")
	}

	_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, seq, created_at, updated_at
		) VALUES (?,?,?,?,?,?,0,(SELECT COALESCE(MAX(seq), 0) + 1 FROM outbox_messages),?,?)
	`),
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		outboxStatusPending, msg.CreatedAt, msg.CreatedAt,
	)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxRow
	if err := sqlx.SelectContext(ctx, r.store.ext(ctx), &rows, r.store.q(`
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_messages
		WHERE status = ?
		ORDER BY seq, id
		LIMIT ?
	`), outboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}

	result := make([]domain.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxMessage{
			ID:            row.ID,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			EventType:     row.EventType,
			Payload:       row.Payload,
			CreatedAt:     utc(row.CreatedAt),
		})
	}
	return result, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ext := r.store.ext(ctx)

	var stats domain.OutboxStats
	if err := sqlx.GetContext(ctx, ext, &stats.PendingCount, r.store.q(`
		SELECT COUNT(*) FROM outbox_messages WHERE status = ?
	`), outboxStatusPending); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}
	if stats.PendingCount == 0 {
		return stats, nil
	}

	// Без агрегата: SQLite теряет тип колонки у MIN() и вернул бы строку.
	var oldest time.Time
	if err := sqlx.GetContext(ctx, ext, &oldest, r.store.q(`
		SELECT created_at FROM outbox_messages
		WHERE status = ?
		ORDER BY created_at
		LIMIT 1
	`), outboxStatusPending); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox oldest pending query failed: %w", err)
	}
	stats.OldestPendingAt = utc(oldest)
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	res, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		UPDATE outbox_messages
		SET status = ?,
		    attempt_count = attempt_count + 1,
		    updated_at = ?
		WHERE id = ?
	`), status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for outbox %s: %w", status, err)
	}
	if affected == 0 {
		return domain.ErrOutboxPublish
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
