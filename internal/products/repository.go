package product

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/pagination"
)

// ListParams filters the storefront listing.
type ListParams struct {
	CategorySlug string
	Pagination   pagination.Params
}

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the given products ordered by id. On postgres the rows are
// locked FOR UPDATE, so concurrent checkouts for the same product serialize
// on the stock check when called inside a transaction.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC")
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListActive returns active products, newest first.
func (r *Repository) ListActive(ctx context.Context, params ListParams) ([]models.Product, error) {
	page := params.Pagination.Normalize()
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("products.status = ?", enums.ProductStatusActive)
	if params.CategorySlug != "" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", params.CategorySlug)
	}

	var products []models.Product
	err := q.Order("products.created_at DESC").
		Order("products.id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&products).Error
	return products, err
}

// DecrementStock subtracts qty from the product's stock in one statement,
// flooring at zero. It reports false when no tracked-stock row matched.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
