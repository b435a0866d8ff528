package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/internal/model"
)

func (c *conn) GetUser(ctx context.Context, id int64) (model.User, bool, error) {
	var u model.User
	err := sqlx.GetContext(ctx, c.q, &u, `
		SELECT id, display_name, phone, external_handle, registered_at
		FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, mapError("get user", err)
	}
	return u, true, nil
}

func (c *conn) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := sqlx.GetContext(ctx, c.q, &out, `
		INSERT INTO users (id, display_name, phone, external_handle)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    phone = EXCLUDED.phone,
		    external_handle = EXCLUDED.external_handle
		RETURNING id, display_name, phone, external_handle, registered_at`,
		u.ID, u.DisplayName, u.Phone, u.ExternalHandle)
	if err != nil {
		return model.User{}, mapError("upsert user", err)
	}
	return out, nil
}

func (c *conn) GetSubscription(ctx context.Context, userID int64) (model.Subscription, bool, error) {
	var sub model.Subscription
	err := sqlx.GetContext(ctx, c.q, &sub, `
		SELECT user_id, tier, purchased_at FROM subscriptions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscription{}, false, nil
	}
	if err != nil {
		return model.Subscription{}, false, mapError("get subscription", err)
	}
	return sub, true, nil
}

// SetSubscription overwrites the user's tier. A zero PurchasedAt means now.
func (c *conn) SetSubscription(ctx context.Context, sub model.Subscription) error {
	purchased := sql.NullTime{Time: sub.PurchasedAt, Valid: !sub.PurchasedAt.IsZero()}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, purchased_at)
		VALUES ($1, $2, COALESCE($3, now()))
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, purchased_at = EXCLUDED.purchased_at`,
		sub.UserID, string(sub.Tier), purchased)
	return mapError("set subscription", err)
}
