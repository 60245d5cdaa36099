package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/repository"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrNotAdmin         = errors.New("only admins can perform this action")
	ErrBrandNotFound    = errors.New("brand not found")
	ErrCategoryNotFound = errors.New("category not found")
)

const (
	landingLimit = 8
	relatedLimit = 4
	// MaxProductImages caps the gallery of one listing.
	MaxProductImages = 10
)

type ProductService struct {
	productRepo repository.ProductRepository
	catalogRepo repository.CatalogRepository
	userRepo    repository.UserRepository
}

func NewProductService(
	productRepo repository.ProductRepository,
	catalogRepo repository.CatalogRepository,
	userRepo repository.UserRepository,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		catalogRepo: catalogRepo,
		userRepo:    userRepo,
	}
}

type CreateProductInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Year        *int     `json:"year,omitempty"`
	BrandID     int64    `json:"brand_id"`
	CategoryID  int64    `json:"category_id"`
	NewBrand    string   `json:"new_brand"`
	NewCategory string   `json:"new_category"`
	Images      []string `json:"images"`
}

type ProductListResponse struct {
	Products []domain.Product `json:"products"`
	// Landing is true when no filter was given and only the latest
	// products are returned.
	Landing bool `json:"landing"`
}

type ProductDetail struct {
	Product *domain.Product  `json:"product"`
	Related []domain.Product `json:"related"`
}

// Search lists products. Without filters and without showAll it returns the
// landing selection of the newest products.
func (s *ProductService) Search(ctx context.Context, filter domain.ProductFilter, showAll bool) (*ProductListResponse, error) {
	filter.Query = strings.TrimSpace(filter.Query)

	limit := 0
	landing := filter.Empty() && !showAll
	if landing {
		limit = landingLimit
	}

	products, err := s.productRepo.List(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return &ProductListResponse{Products: products, Landing: landing}, nil
}

// Get returns a product with up to four related products: the same
// category first, the newest listings when the category has none.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*ProductDetail, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	related, err := s.productRepo.ListByCategory(ctx, product.CategoryID, id, relatedLimit)
	if err != nil {
		return nil, err
	}
	if len(related) == 0 {
		related, err = s.productRepo.ListLatest(ctx, id, relatedLimit)
		if err != nil {
			return nil, err
		}
	}
	if related == nil {
		related = []domain.Product{}
	}

	return &ProductDetail{Product: product, Related: related}, nil
}

// Create lists a new product. Only admins may call it. A custom brand or
// category name is inserted before the product.
func (s *ProductService) Create(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	if err := s.RequireAdmin(ctx, userID); err != nil {
		return nil, err
	}

	brandID, err := s.resolveBrand(ctx, input)
	if err != nil {
		return nil, err
	}
	categoryID, err := s.resolveCategory(ctx, input)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		SellerID:   userID,
		Title:      strings.TrimSpace(input.Title),
		Price:      input.Price,
		Year:       input.Year,
		BrandID:    brandID,
		CategoryID: categoryID,
		Images:     input.Images,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		product.Description = &desc
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	return s.productRepo.GetByID(ctx, product.ID)
}

func (s *ProductService) Brands(ctx context.Context) ([]domain.Brand, error) {
	brands, err := s.catalogRepo.ListBrands(ctx)
	if brands == nil && err == nil {
		brands = []domain.Brand{}
	}
	return brands, err
}

func (s *ProductService) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.catalogRepo.ListCategories(ctx)
	if categories == nil && err == nil {
		categories = []domain.Category{}
	}
	return categories, err
}

// RequireAdmin returns ErrNotAdmin unless userID is an admin.
func (s *ProductService) RequireAdmin(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

func (s *ProductService) resolveBrand(ctx context.Context, input CreateProductInput) (int64, error) {
	if name := strings.TrimSpace(input.NewBrand); name != "" {
		b, err := s.catalogRepo.CreateBrand(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("creating brand: %w", err)
		}
		return b.ID, nil
	}
	b, err := s.catalogRepo.GetBrand(ctx, input.BrandID)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, ErrBrandNotFound
	}
	return b.ID, nil
}

func (s *ProductService) resolveCategory(ctx context.Context, input CreateProductInput) (int64, error) {
	if name := strings.TrimSpace(input.NewCategory); name != "" {
		c, err := s.catalogRepo.CreateCategory(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("creating category: %w", err)
		}
		return c.ID, nil
	}
	c, err := s.catalogRepo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, ErrCategoryNotFound
	}
	return c.ID, nil
}
