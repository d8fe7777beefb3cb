package address

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	addressColumns = `address_id, user_id, label, full_name, phone, line1, line2, city, state, postal_code, country, created_at`

	listAddressQuery = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY address_id`
	getAddressQuery  = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND address_id = $2`

	insertAddressQuery = `
		INSERT INTO addresses (user_id, label, full_name, phone, line1, line2, city, state, postal_code, country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + addressColumns
	updateAddressQuery = `
		UPDATE addresses
		SET label=$3, full_name=$4, phone=$5, line1=$6, line2=$7, city=$8, state=$9, postal_code=$10, country=$11
		WHERE user_id=$1 AND address_id=$2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM addresses WHERE user_id=$1 AND address_id=$2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (Address, error) {
	var a Address
	err := row.Scan(&a.AddressID, &a.UserID, &a.Label, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, addressID int) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, getAddressQuery, userID, addressID))
}

func (r *PostgresRepository) Add(ctx context.Context, a Address) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, insertAddressQuery,
		a.UserID, a.Label, a.FullName, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country))
}

func (r *PostgresRepository) Update(ctx context.Context, a Address) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		a.UserID, a.AddressID, a.Label, a.FullName, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, addressID int) error {
	res, err := r.db.ExecContext(ctx, deleteAddressQuery, userID, addressID)
	if err != nil {
		return err
	}
	cnt, _ := res.RowsAffected()
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}
