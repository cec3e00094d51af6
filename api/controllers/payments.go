package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/api/responses"
	"github.com/belezaviva/belezaviva-backend/api/validators"
	paymentsvc "github.com/belezaviva/belezaviva-backend/internal/payments"
	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

type createChargeRequest struct {
	OrderID  string              `json:"order_id" validate:"required,uuid"`
	Amount   decimal.Decimal     `json:"amount"`
	Method   string              `json:"method" validate:"required,oneof=pix credit_card boleto"`
	Customer *customerRequest    `json:"customer,omitempty"`
	Card     *cardDetailsRequest `json:"card,omitempty"`
	Metadata json.RawMessage     `json:"metadata,omitempty"`
}

type customerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type cardDetailsRequest struct {
	Number     string `json:"number" validate:"required"`
	HolderName string `json:"holder_name" validate:"required"`
	ExpMonth   int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear    int    `json:"exp_year" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

func (r createChargeRequest) toInput() (paymentsvc.CreateChargeInput, error) {
	orderID, err := uuid.Parse(r.OrderID)
	if err != nil {
		return paymentsvc.CreateChargeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	if !r.Amount.IsPositive() {
		return paymentsvc.CreateChargeInput{}, pkgerrors.New(pkgerrors.CodeValidation, "valor do pagamento deve ser maior que zero")
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(r.Method))
	if err != nil {
		return paymentsvc.CreateChargeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	input := paymentsvc.CreateChargeInput{
		OrderID:  orderID,
		Amount:   r.Amount,
		Method:   method,
		Metadata: r.Metadata,
	}
	if r.Customer != nil {
		input.Customer = &types.CustomerInfo{
			Name:     r.Customer.Name,
			Email:    r.Customer.Email,
			Document: r.Customer.Document,
			Phone:    r.Customer.Phone,
		}
	}
	if r.Card != nil {
		input.Card = &abacatepay.CardDetails{
			Number:     r.Card.Number,
			HolderName: r.Card.HolderName,
			ExpMonth:   r.Card.ExpMonth,
			ExpYear:    r.Card.ExpYear,
			CVV:        r.Card.CVV,
		}
	}
	return input, nil
}

// PaymentCreate handles charge creation for the checkout flow.
func PaymentCreate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createChargeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, input.OrderID.String())
		}

		charge, err := svc.CreateCharge(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, charge)
	}
}

// PaymentStatus returns the current state of one charge.
func PaymentStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPaymentID(ctx, paymentID)
		}

		status, err := svc.GetStatus(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// OrderPayments lists every charge attempted against an order.
func OrderPayments(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		list, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
