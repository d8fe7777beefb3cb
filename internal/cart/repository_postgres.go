package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository keeps one row per cart in `carts`. The table carries a
// CHECK that exactly one of user_id / guest_token is set, and a partial
// unique index on each of them.
type PostgresRepository struct {
	db *sql.DB
}

const (
	cartColumns = `id, user_id, guest_token, items, created_at, updated_at`

	getCartByUserQuery  = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	getCartByGuestQuery = `SELECT ` + cartColumns + ` FROM carts WHERE guest_token = $1`

	upsertUserCartQuery = `
		INSERT INTO carts (id, user_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) WHERE user_id IS NOT NULL
		DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
		RETURNING ` + cartColumns
	upsertGuestCartQuery = `
		INSERT INTO carts (id, guest_token, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (guest_token) WHERE guest_token IS NOT NULL
		DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
		RETURNING ` + cartColumns

	deleteUserCartQuery  = `DELETE FROM carts WHERE user_id = $1`
	deleteGuestCartQuery = `DELETE FROM carts WHERE guest_token = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, owner Owner) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	var row *sql.Row
	if owner.IsUser() {
		row = r.db.QueryRowContext(ctx, getCartByUserQuery, owner.UserID)
	} else {
		row = r.db.QueryRowContext(ctx, getCartByGuestQuery, owner.GuestToken)
	}
	c, err := scanCart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Save(ctx context.Context, c Cart) (Cart, error) {
	if err := c.Validate(); err != nil {
		return Cart{}, err
	}
	items, err := json.Marshal(c.Items)
	if err != nil {
		return Cart{}, err
	}
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	var row *sql.Row
	if c.UserID != nil {
		row = r.db.QueryRowContext(ctx, upsertUserCartQuery, id, *c.UserID, items, now)
	} else {
		row = r.db.QueryRowContext(ctx, upsertGuestCartQuery, id, *c.GuestToken, items, now)
	}
	saved, err := scanCart(row)
	if err != nil {
		return Cart{}, fmt.Errorf("failed to upsert cart: %w", err)
	}
	return saved, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	var err error
	if owner.IsUser() {
		_, err = r.db.ExecContext(ctx, deleteUserCartQuery, owner.UserID)
	} else {
		_, err = r.db.ExecContext(ctx, deleteGuestCartQuery, owner.GuestToken)
	}
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func scanCart(row *sql.Row) (Cart, error) {
	var (
		c      Cart
		userID sql.NullInt64
		guest  sql.NullString
		items  []byte
	)
	if err := row.Scan(&c.ID, &userID, &guest, &items, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Cart{}, err
	}
	if userID.Valid {
		id := int(userID.Int64)
		c.UserID = &id
	}
	if guest.Valid {
		c.GuestToken = &guest.String
	}
	c.Items = []Item{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return Cart{}, fmt.Errorf("decode cart items: %w", err)
		}
	}
	return c, nil
}
