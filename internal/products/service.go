package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tech4loop/marketplace-backend/internal/coverage"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

type listRepository interface {
	ListActive(ctx context.Context, params ListParams) ([]models.Product, error)
}

type profileLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error)
}

type urlResolver interface {
	PublicURL(key string) string
}

// Service exposes the storefront read path.
type Service interface {
	ListForLocation(ctx context.Context, loc coverage.Location, params ListParams) ([]ProductDTO, error)
}

// ProductDTO is the storefront projection of a product.
type ProductDTO struct {
	ID           uuid.UUID                 `json:"id"`
	Name         string                    `json:"name"`
	Slug         string                    `json:"slug"`
	Price        decimal.Decimal           `json:"price"`
	Stock        *int                      `json:"stock,omitempty"`
	Brand        *string                   `json:"brand,omitempty"`
	Condition    enums.ProductCondition    `json:"condition"`
	Availability enums.ProductAvailability `json:"availability"`
	Images       []string                  `json:"images"`
	PartnerID    *uuid.UUID                `json:"partner_id,omitempty"`
	PartnerName  *string                   `json:"partner_name,omitempty"`
}

type service struct {
	repo     listRepository
	profiles profileLoader
	storage  urlResolver
}

// NewService builds the product listing service.
func NewService(repo listRepository, profiles profileLoader, storage urlResolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile loader required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage resolver required")
	}
	return &service{repo: repo, profiles: profiles, storage: storage}, nil
}

// ListForLocation returns the active products deliverable to loc. House
// products are always included. With an empty location nothing is filtered.
func (s *service) ListForLocation(ctx context.Context, loc coverage.Location, params ListParams) ([]ProductDTO, error) {
	products, err := s.repo.ListActive(ctx, params)
	if err != nil {
		return nil, err
	}

	partnerIDs := distinctPartners(products)
	partners := make(map[uuid.UUID]models.Profile, len(partnerIDs))
	if len(partnerIDs) > 0 {
		profiles, err := s.profiles.FindByIDs(ctx, partnerIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			partners[p.ID] = p
		}
	}

	filter := strings.TrimSpace(loc.City) != "" || strings.TrimSpace(loc.State) != ""
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		var partner *models.Profile
		if p.PartnerID != nil {
			profile, ok := partners[*p.PartnerID]
			if !ok {
				// orphaned partner reference; not sellable
				continue
			}
			partner = &profile
			if filter && !coverage.Eligible(profile.ServiceRegions, loc) {
				continue
			}
		}
		out = append(out, s.toDTO(p, partner))
	}
	return out, nil
}

func (s *service) toDTO(p models.Product, partner *models.Profile) ProductDTO {
	images := make([]string, 0, len(p.Images))
	for _, key := range p.Images {
		if u := s.storage.PublicURL(key); u != "" {
			images = append(images, u)
		}
	}
	dto := ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        p.Price,
		Stock:        p.Stock,
		Brand:        p.Brand,
		Condition:    p.Condition,
		Availability: p.Availability,
		Images:       images,
		PartnerID:    p.PartnerID,
	}
	if partner != nil {
		dto.PartnerName = partner.PartnerName
	}
	return dto
}

func distinctPartners(products []models.Product) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, p := range products {
		if p.PartnerID == nil {
			continue
		}
		if _, ok := seen[*p.PartnerID]; ok {
			continue
		}
		seen[*p.PartnerID] = struct{}{}
		ids = append(ids, *p.PartnerID)
	}
	return ids
}
