package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	productColumns = `product_id, product_name, product_price, discount_price, variants, category, product_img, updated_at`

	getProductByIDQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE product_id = $1
	`
	listProductsByIDsQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE product_id = ANY($1::int[])
		ORDER BY product_id
	`
	updateProductQuery = `
		UPDATE products
		SET product_name = $2,
			product_price = $3,
			discount_price = $4,
			variants = $5,
			category = $6,
			product_img = $7,
			updated_at = $8
		WHERE product_id = $1
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	rows, err := r.db.QueryContext(ctx, listProductsByIDsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, p Product) (Product, error) {
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return Product{}, err
	}
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, updateProductQuery,
		p.ID, p.Name, p.Price, p.DiscountPrice, variants, p.Category, p.Img, p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p                     Product
		price, discount       sql.NullInt64
		variants              []byte
		category, img, update sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &discount, &variants, &category, &img, &update); err != nil {
		return Product{}, err
	}
	if price.Valid {
		v := int(price.Int64)
		p.Price = &v
	}
	if discount.Valid {
		v := int(discount.Int64)
		p.DiscountPrice = &v
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return Product{}, fmt.Errorf("decode variants of product %d: %w", p.ID, err)
		}
	}
	if category.Valid {
		p.Category = &category.String
	}
	if img.Valid {
		p.Img = &img.String
	}
	p.UpdatedAt = update.String
	return p, nil
}
