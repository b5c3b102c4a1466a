package service

import (
	"context"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultProducts is what an empty catalog is seeded with.
var DefaultProducts = []domain.Product{
	{Name: "Transport", Price: 200, Active: true},
	{Name: "Buy", Price: 100, Active: true},
}

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	productRepo ports.ProductRepository
	log         zerolog.Logger
}

func NewCatalogService(productRepo ports.ProductRepository, log zerolog.Logger) *CatalogServiceImpl {
	return &CatalogServiceImpl{productRepo: productRepo, log: log}
}

func (s *CatalogServiceImpl) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// SeedDefaults inserts DefaultProducts when the catalog is empty. A catalog
// with any rows, active or not, is left alone.
func (s *CatalogServiceImpl) SeedDefaults(ctx context.Context) error {
	count, err := s.productRepo.Count(ctx)
	if err != nil {
		return storageErr("count products", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range DefaultProducts {
		p.ID = uuid.New()
		p.CreatedAt = now
		if err := s.productRepo.Create(ctx, &p); err != nil {
			return storageErr("seed product", err)
		}
	}

	s.log.Info().Int("count", len(DefaultProducts)).Msg("product catalog seeded")
	return nil
}
