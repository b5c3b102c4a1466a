package service

import (
	"context"
	"errors"
	"testing"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports/mocks"
	"smartpay/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCatalogService_SeedDefaults_EmptyCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	svc := NewCatalogService(repo, newTestLogger())
	ctx := context.Background()

	var seeded []domain.Product
	repo.EXPECT().Count(ctx).Return(int64(0), nil)
	repo.EXPECT().Create(ctx, gomock.Any()).Times(2).DoAndReturn(func(_ context.Context, p *domain.Product) error {
		seeded = append(seeded, *p)
		return nil
	})

	require.NoError(t, svc.SeedDefaults(ctx))
	require.Len(t, seeded, 2)
	assert.Equal(t, "Transport", seeded[0].Name)
	assert.Equal(t, int64(200), seeded[0].Price)
	assert.Equal(t, "Buy", seeded[1].Name)
	assert.Equal(t, int64(100), seeded[1].Price)
	assert.NotEqual(t, seeded[0].ID, seeded[1].ID)
	assert.True(t, seeded[0].Active)
}

func TestCatalogService_SeedDefaults_NonEmptyCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	svc := NewCatalogService(repo, newTestLogger())
	ctx := context.Background()

	repo.EXPECT().Count(ctx).Return(int64(3), nil)

	require.NoError(t, svc.SeedDefaults(ctx))
}

func TestCatalogService_SeedDefaults_CountFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	svc := NewCatalogService(repo, newTestLogger())

	repo.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("db down"))

	err := svc.SeedDefaults(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeStorageUnavailable))
}

func TestCatalogService_ListProducts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	svc := NewCatalogService(repo, newTestLogger())
	ctx := context.Background()

	repo.EXPECT().ListActive(ctx).Return(nil, nil)
	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	repo.EXPECT().ListActive(ctx).Return([]domain.Product{{Name: "Buy", Price: 100, Active: true}}, nil)
	products, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
