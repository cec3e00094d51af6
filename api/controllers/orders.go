package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/api/responses"
	"github.com/belezaviva/belezaviva-backend/api/validators"
	ordersvc "github.com/belezaviva/belezaviva-backend/internal/orders"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

type createOrderRequest struct {
	CustomerID      string                   `json:"customer_id" validate:"required,uuid"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingCost    decimal.Decimal          `json:"shipping_cost"`
	ShippingAddress *addressRequest          `json:"shipping_address,omitempty"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type addressRequest struct {
	Street     string `json:"street" validate:"required"`
	Number     string `json:"number" validate:"required"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country,omitempty"`
}

func (r createOrderRequest) toInput() (ordersvc.CreateOrderInput, error) {
	customerID, err := uuid.Parse(r.CustomerID)
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
	}
	if r.ShippingCost.IsNegative() {
		return ordersvc.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "custo de envio não pode ser negativo")
	}

	items := make([]ordersvc.CreateOrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		items = append(items, ordersvc.CreateOrderItem{ProductID: productID, Quantity: item.Quantity})
	}

	input := ordersvc.CreateOrderInput{
		CustomerID:   customerID,
		Items:        items,
		ShippingCost: r.ShippingCost,
	}
	if r.ShippingAddress != nil {
		country := r.ShippingAddress.Country
		if country == "" {
			country = "BR"
		}
		input.ShippingAddress = &types.Address{
			Street:     r.ShippingAddress.Street,
			Number:     r.ShippingAddress.Number,
			Complement: r.ShippingAddress.Complement,
			District:   r.ShippingAddress.District,
			City:       r.ShippingAddress.City,
			State:      r.ShippingAddress.State,
			PostalCode: r.ShippingAddress.PostalCode,
			Country:    country,
		}
	}
	return input, nil
}

// OrderCreate snapshots the cart into an order with current catalog prices.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one order with its line items.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderList returns the orders belonging to one customer.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		customerID, err := uuid.Parse(r.URL.Query().Get("customer_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		orders, err := svc.ListByCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders)
	}
}
