package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/service"
	"github.com/vedran77/onionparts/internal/transport/http/middleware"
	"github.com/vedran77/onionparts/pkg/validator"
)

type ProductHandler struct {
	productService *service.ProductService
}

func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List serves the catalogue: the landing page when no filter is set,
// otherwise the filtered (or, with view=all, complete) listing.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{Query: strings.TrimSpace(q.Get("q"))}

	var ok bool
	if filter.BrandID, ok = parseOptionalID(q.Get("brand")); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid brand filter")
		return
	}
	if filter.CategoryID, ok = parseOptionalID(q.Get("category")); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid category filter")
		return
	}

	resp, err := h.productService.Search(r.Context(), filter, q.Get("view") == "all")
	if err != nil {
		writeInternal(w, "list products", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid product ID")
		return
	}

	detail, err := h.productService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		} else {
			writeInternal(w, "get product", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateProduct(input.Title, input.Price, input.BrandID, input.CategoryID,
		input.NewBrand, input.NewCategory, input.Images, service.MaxProductImages); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	product, err := h.productService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdmin):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only admins can list products")
		case errors.Is(err, service.ErrBrandNotFound):
			writeError(w, http.StatusBadRequest, "BRAND_NOT_FOUND", "Brand not found")
		case errors.Is(err, service.ErrCategoryNotFound):
			writeError(w, http.StatusBadRequest, "CATEGORY_NOT_FOUND", "Category not found")
		default:
			writeInternal(w, "create product", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Brands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.productService.Brands(r.Context())
	if err != nil {
		writeInternal(w, "list brands", err)
		return
	}
	writeJSON(w, http.StatusOK, brands)
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		writeInternal(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// parseOptionalID parses a positive catalogue id; empty means no filter.
func parseOptionalID(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
