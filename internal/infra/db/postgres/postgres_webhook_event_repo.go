package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepo(pool *pgxpool.Pool) repository.WebhookEventRepository {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Save(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, provider, event_type, event_key, outcome, error, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.Provider, ev.EventType, ev.EventKey, ev.Outcome, ev.Error, ev.ReceivedAt)
	return mapWriteErr(err)
}

func (r *webhookEventRepo) CountByKey(ctx context.Context, tx repository.Tx, provider, eventType, eventKey string) (int, error) {
	const q = `
SELECT COUNT(*) FROM webhook_events
 WHERE provider = $1 AND event_type = $2 AND event_key = $3`
	row, err := pickRow(ctx, r.pool, tx, q, provider, eventType, eventKey)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
