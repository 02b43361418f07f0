package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type timelineRepository struct {
	store *Store
}

type timelineRow struct {
	OrderID  string    `db:"order_id"`
	Type     string    `db:"type"`
	Reason   string    `db:"reason"`
	Occurred time.Time `db:"occurred"`
}

// NewTimelineRepository создаёт SQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return store.Timeline()
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		INSERT INTO timeline_events (order_id, type, reason, occurred)
		VALUES (?,?,?,?)
	`), event.OrderID, event.Type, event.Reason, event.Occurred.UTC()); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	var rows []timelineRow
	if err := sqlx.SelectContext(ctx, r.store.ext(ctx), &rows, r.store.q(`
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = ?
		ORDER BY occurred ASC, id ASC
	`), orderID); err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}

	events := make([]domain.TimelineEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.TimelineEvent{
			OrderID:  row.OrderID,
			Type:     row.Type,
			Reason:   row.Reason,
			Occurred: utc(row.Occurred),
		})
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
