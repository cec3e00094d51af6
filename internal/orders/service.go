package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error
}

// CreateOrderInput carries the checkout payload into order creation.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	Items           []CreateOrderItem
	ShippingCost    decimal.Decimal
	ShippingAddress *types.Address
}

// CreateOrderItem references a catalog product and the desired quantity.
type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type service struct {
	repo     Repository
	products ProductLoader
	cart     CartClearer
	tx       txRunner
	logger   *logger.Logger
}

// ServiceParams bundles the order service dependencies. Cart is optional.
type ServiceParams struct {
	Repo     Repository
	Products ProductLoader
	Cart     CartClearer
	Tx       txRunner
	Logger   *logger.Logger
}

// NewService validates dependencies and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		cart:     params.Cart,
		tx:       params.Tx,
		logger:   params.Logger,
	}, nil
}

// Create snapshots current catalog prices into line items and totals. Prices
// on the order never change after this point, regardless of later catalog
// edits.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "o pedido deve conter ao menos um item")
	}
	if input.ShippingCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost cannot be negative")
	}

	productIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantidade do item deve ser maior que zero")
		}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.FindActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	priceByID := make(map[uuid.UUID]decimal.Decimal, len(products))
	for _, product := range products {
		priceByID[product.ID] = product.Price
	}

	subtotal := decimal.Zero
	lineItems := make([]models.OrderLineItem, 0, len(input.Items))
	for _, item := range input.Items {
		price, ok := priceByID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado ou indisponível").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lineItems = append(lineItems, models.OrderLineItem{
			ID:        uuid.New(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Total:     lineTotal,
		})
	}

	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		Status:          enums.OrderStatusPending,
		Subtotal:        subtotal,
		ShippingCost:    input.ShippingCost,
		Total:           subtotal.Add(input.ShippingCost),
		ShippingAddress: input.ShippingAddress,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range lineItems {
			lineItems[i].OrderID = created.ID
		}
		if err := repo.CreateLineItems(ctx, lineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Items = lineItems
	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pedido não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// MarkPaid settles the order when its payment reaches paid, then empties the
// customer's cart. An order already marked paid is left alone, so payment
// reconciliation can call this for every paid report without double-settling.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pedido não encontrado")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == enums.OrderStatusPaid {
		return nil
	}

	// A locally expired order can still settle when the provider confirms a
	// late payment.
	affected, err := repo.UpdateStatusFrom(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusExpired},
		map[string]any{
			"status":  enums.OrderStatusPaid,
			"paid_at": paidAt,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if affected == 0 {
		return nil
	}

	if s.cart != nil {
		if err := s.cart.ClearForCustomer(ctx, tx, order.CustomerID, paidAt); err != nil {
			s.logger.Error(ctx, "clear cart after payment", err)
		}
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())
	s.logger.Info(ctx, "order marked paid")
	return nil
}
