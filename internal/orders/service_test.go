package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  shipping_cost NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  shipping_address TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME
);`
	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  category TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{orders, lineItems, products} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubProductLoader struct {
	products []models.Product
}

func (s *stubProductLoader) FindActiveByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	byID := make(map[uuid.UUID]models.Product, len(s.products))
	for _, product := range s.products {
		byID[product.ID] = product
	}
	var out []models.Product
	for _, id := range ids {
		if product, ok := byID[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

type stubCartClearer struct {
	calls []uuid.UUID
}

func (s *stubCartClearer) ClearForCustomer(_ context.Context, _ *gorm.DB, customerID uuid.UUID, _ time.Time) error {
	s.calls = append(s.calls, customerID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, db *gorm.DB, loader ProductLoader, cart CartClearer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Products: loader,
		Cart:     cart,
		Tx:       &gormTxRunner{db: db},
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func catalogProduct(price string) models.Product {
	return models.Product{
		ID:     uuid.New(),
		Name:   "Sérum Facial",
		Slug:   "serum-facial-" + uuid.NewString()[:8],
		Price:  decimal.RequireFromString(price),
		Active: true,
	}
}

func TestCreateSnapshotsPricesAndTotals(t *testing.T) {
	db := setupOrdersTestDB(t)
	serum := catalogProduct("89.90")
	mask := catalogProduct("25.05")
	svc := newTestService(t, db, &stubProductLoader{products: []models.Product{serum, mask}}, nil)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:   uuid.New(),
		ShippingCost: decimal.RequireFromString("12.00"),
		Items: []CreateOrderItem{
			{ProductID: serum.ID, Quantity: 2},
			{ProductID: mask.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("204.85")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("216.85")))
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].UnitPrice.Equal(serum.Price))
	assert.True(t, order.Items[0].Total.Equal(decimal.RequireFromString("179.80")))

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newTestService(t, db, &stubProductLoader{}, nil)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: uuid.New(), Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCreateRejectsEmptyOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newTestService(t, db, &stubProductLoader{}, nil)

	_, err := svc.Create(context.Background(), CreateOrderInput{CustomerID: uuid.New()})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestMarkPaidSettlesOrderOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	product := catalogProduct("30.00")
	cart := &stubCartClearer{}
	svc := newTestService(t, db, &stubProductLoader{products: []models.Product{product}}, cart)

	customerID := uuid.New()
	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:   customerID,
		ShippingCost: decimal.Zero,
		Items:        []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	paidAt := time.Now().UTC()
	require.NoError(t, svc.MarkPaid(context.Background(), db, order.ID, paidAt))
	require.NoError(t, svc.MarkPaid(context.Background(), db, order.ID, paidAt.Add(time.Minute)))

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, []uuid.UUID{customerID}, cart.calls, "cart cleared exactly once")
}

func TestMarkPaidSettlesExpiredOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	product := catalogProduct("15.00")
	svc := newTestService(t, db, &stubProductLoader{products: []models.Product{product}}, nil)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusExpired).Error)

	require.NoError(t, svc.MarkPaid(context.Background(), db, order.ID, time.Now().UTC()))

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newTestService(t, db, &stubProductLoader{}, nil)

	err := svc.MarkPaid(context.Background(), db, uuid.New(), time.Now().UTC())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
