package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/onionparts/internal/domain"
)

// CatalogRepo stores the brand and category lookup tables.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM brands ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (r *CatalogRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CatalogRepo) CreateBrand(ctx context.Context, name string) (*domain.Brand, error) {
	b := domain.Brand{Name: name}
	err := r.pool.QueryRow(ctx, `INSERT INTO brands (name) VALUES ($1) RETURNING id`, name).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *CatalogRepo) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	c := domain.Category{Name: name}
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepo) GetBrand(ctx context.Context, id int64) (*domain.Brand, error) {
	var b domain.Brand
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM brands WHERE id = $1`, id).Scan(&b.ID, &b.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &b, err
}

func (r *CatalogRepo) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &c, err
}
