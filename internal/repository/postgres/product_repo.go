package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/onionparts/internal/domain"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productSelect = `
	SELECT p.id, p.seller_id, p.title, p.description, p.price, p.year,
		p.brand_id, p.category_id, p.images, p.created_at, b.name, c.name
	FROM products p
	JOIN brands b ON p.brand_id = b.id
	JOIN categories c ON p.category_id = c.id`

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (seller_id, title, description, price, year, brand_id, category_id, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		p.SellerID, p.Title, p.Description, p.Price, p.Year, p.BrandID, p.CategoryID, p.Images,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	rows, err := r.pool.Query(ctx, productSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ProductFilter, limit int) ([]domain.Product, error) {
	var where []string
	var args []any

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if filter.BrandID != 0 {
		args = append(args, filter.BrandID)
		where = append(where, fmt.Sprintf("p.brand_id = $%d", len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("p.category_id = $%d", len(args)))
	}

	query := productSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *ProductRepo) ListByCategory(ctx context.Context, categoryID int64, exclude uuid.UUID, limit int) ([]domain.Product, error) {
	query := fmt.Sprintf(productSelect+`
		WHERE p.category_id = $1 AND p.id <> $2
		ORDER BY p.created_at DESC
		LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query, categoryID, exclude)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *ProductRepo) ListLatest(ctx context.Context, exclude uuid.UUID, limit int) ([]domain.Product, error) {
	query := fmt.Sprintf(productSelect+`
		WHERE p.id <> $1
		ORDER BY p.created_at DESC
		LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query, exclude)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Year,
			&p.BrandID, &p.CategoryID, &p.Images, &p.CreatedAt,
			&p.BrandName, &p.CategoryName,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
