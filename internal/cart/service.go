package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

// ItemInput is one product line in a cart update.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service defines cart operations. A customer has at most one active cart;
// updates replace the whole item set.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	SetItems(ctx context.Context, customerID uuid.UUID, items []ItemInput) (*models.CartRecord, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
	ClearForCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, clearedAt time.Time) error
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService validates dependencies and builds the cart service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	record, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.CartRecord{CustomerID: customerID, Items: []models.CartItem{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

func (s *service) SetItems(ctx context.Context, customerID uuid.UUID, items []ItemInput) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantidade do item deve ser maior que zero")
		}
	}

	record, err := s.repo.FindByCustomer(ctx, customerID)
	if err == gorm.ErrRecordNotFound {
		record, err = s.repo.Create(ctx, &models.CartRecord{ID: uuid.New(), CustomerID: customerID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
	}

	cartItems := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		cartItems = append(cartItems, models.CartItem{
			ID:        uuid.New(),
			CartID:    record.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	if err := s.repo.ReplaceItems(ctx, record.ID, cartItems); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace cart items")
	}

	record.Items = cartItems
	record.ClearedAt = nil
	return record, nil
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	return s.ClearForCustomer(ctx, nil, customerID, time.Now().UTC())
}

// ClearForCustomer empties the cart inside the caller's transaction. A missing
// cart is fine; there is nothing to clear.
func (s *service) ClearForCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, clearedAt time.Time) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	repo := s.repo.WithTx(tx)
	record, err := repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := repo.Clear(ctx, record.ID, clearedAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.logger.Info(s.logger.WithField(ctx, "customer_id", customerID.String()), "cart cleared")
	return nil
}
