package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

const webhookColumns = "id, url, events, enabled, secret, created_at, updated_at"

// ListWebhooks returns every registered webhook.
func (s *Store) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+webhookColumns+" FROM webhooks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	hooks := make([]models.Webhook, 0, 8)
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return hooks, nil
}

// GetWebhook fetches a webhook by id.
func (s *Store) GetWebhook(ctx context.Context, id int64) (models.Webhook, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+webhookColumns+" FROM webhooks WHERE id = $1", id)
	w, err := scanWebhook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Webhook{}, ErrNotFound
	}
	if err != nil {
		return models.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

// CreateWebhook registers a subscriber endpoint.
func (s *Store) CreateWebhook(ctx context.Context, w models.Webhook) (models.Webhook, error) {
	eventsJSON, err := json.Marshal(w.Events)
	if err != nil {
		return models.Webhook{}, fmt.Errorf("marshal events: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhooks (url, events, enabled, secret)
		VALUES ($1, $2, $3, $4)
		RETURNING `+webhookColumns,
		w.URL, eventsJSON, w.Enabled, w.Secret)
	created, err := scanWebhook(row)
	if err != nil {
		return models.Webhook{}, fmt.Errorf("insert webhook: %w", err)
	}
	return created, nil
}

// UpdateWebhookParams carries optional fields; nil leaves a field as is.
type UpdateWebhookParams struct {
	URL     *string
	Events  *[]string
	Enabled *bool
	Secret  *string
}

// UpdateWebhook applies a partial update and returns the new row.
func (s *Store) UpdateWebhook(ctx context.Context, id int64, p UpdateWebhookParams) (models.Webhook, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.URL != nil {
		add("url", *p.URL)
	}
	if p.Events != nil {
		eventsJSON, err := json.Marshal(*p.Events)
		if err != nil {
			return models.Webhook{}, fmt.Errorf("marshal events: %w", err)
		}
		add("events", eventsJSON)
	}
	if p.Enabled != nil {
		add("enabled", *p.Enabled)
	}
	if p.Secret != nil {
		add("secret", emptyToNil(*p.Secret))
	}
	if len(sets) == 0 {
		return s.GetWebhook(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE webhooks SET %s WHERE id = $1 RETURNING %s",
		strings.Join(sets, ", "), webhookColumns)
	row := s.pool.QueryRow(ctx, query, args...)
	updated, err := scanWebhook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Webhook{}, ErrNotFound
	}
	if err != nil {
		return models.Webhook{}, fmt.Errorf("update webhook: %w", err)
	}
	return updated, nil
}

// DeleteWebhook removes a subscriber endpoint.
func (s *Store) DeleteWebhook(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WebhooksForEvent returns enabled webhooks subscribed to the event.
func (s *Store) WebhooksForEvent(ctx context.Context, event string) ([]models.Webhook, error) {
	member, err := json.Marshal([]string{event})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+webhookColumns+" FROM webhooks WHERE enabled AND events @> $1", member)
	if err != nil {
		return nil, fmt.Errorf("query webhooks for event: %w", err)
	}
	defer rows.Close()

	hooks := make([]models.Webhook, 0, 4)
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return hooks, nil
}

func scanWebhook(row pgx.Row) (models.Webhook, error) {
	var w models.Webhook
	var eventsJSON []byte
	var secret pgtype.Text
	if err := row.Scan(&w.ID, &w.URL, &eventsJSON, &w.Enabled, &secret, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return models.Webhook{}, err
	}
	if err := json.Unmarshal(eventsJSON, &w.Events); err != nil {
		return models.Webhook{}, fmt.Errorf("unmarshal events: %w", err)
	}
	w.Secret = textPtr(secret)
	return w, nil
}
