package domain

import (
	"time"

	"github.com/google/uuid"
)

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Year        *int      `json:"year,omitempty"`
	BrandID     int64     `json:"brand_id"`
	CategoryID  int64     `json:"category_id"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	// Joined fields
	BrandName    string `json:"brand_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
}

// ProductSummary is the slice of a product shown in room headers and lists.
type ProductSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Price int64     `json:"price"`
	Image *string   `json:"image,omitempty"`
}

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	Query      string
	BrandID    int64
	CategoryID int64
}

// Empty reports whether no filter is set.
func (f ProductFilter) Empty() bool {
	return f.Query == "" && f.BrandID == 0 && f.CategoryID == 0
}
