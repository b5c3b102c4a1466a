package postgres

import (
	"context"
	"testing"
	"time"

	"smartpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := &domain.Product{ID: uuid.New(), Name: "Transport", Price: 200, Active: true, CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.Name, p.Price, p.Active, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, NewProductRepo(mock).Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "name", "price", "active", "created_at"}).
		AddRow(uuid.New(), "Transport", int64(200), true, now).
		AddRow(uuid.New(), "Buy", int64(100), true, now)

	mock.ExpectQuery("SELECT .+ FROM products\\s+WHERE active").WillReturnRows(rows)

	products, err := NewProductRepo(mock).ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Transport", products[0].Name)
	assert.Equal(t, int64(100), products[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := NewProductRepo(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
