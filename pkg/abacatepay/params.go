package abacatepay

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

// CardDetails is the full card payload required for credit_card charges. The
// values are forwarded to the provider and never persisted locally.
type CardDetails struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
}

// BillingParams describes one charge creation request.
type BillingParams struct {
	Amount   decimal.Decimal
	OrderID  uuid.UUID
	Method   enums.PaymentMethod
	Customer *types.CustomerInfo
	Card     *CardDetails
}

// Validate applies the method-specific field rules before any network call.
func (p BillingParams) Validate() error {
	if !p.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "valor do pagamento deve ser maior que zero")
	}
	if p.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !p.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "método de pagamento inválido")
	}

	switch p.Method {
	case enums.PaymentMethodCreditCard:
		if p.Card == nil || !p.Card.complete() {
			return pkgerrors.New(pkgerrors.CodeValidation, "dados completos do cartão são obrigatórios para pagamento com cartão")
		}
	case enums.PaymentMethodBoleto:
		if p.Customer == nil ||
			strings.TrimSpace(p.Customer.Name) == "" ||
			strings.TrimSpace(p.Customer.Email) == "" ||
			strings.TrimSpace(p.Customer.Document) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "Informações do cliente com CPF são obrigatórias para boleto")
		}
	}
	return nil
}

func (c *CardDetails) complete() bool {
	return strings.TrimSpace(c.Number) != "" &&
		strings.TrimSpace(c.HolderName) != "" &&
		c.ExpMonth >= 1 && c.ExpMonth <= 12 &&
		c.ExpYear > 0 &&
		strings.TrimSpace(c.CVV) != ""
}

// MinorUnits converts a major-unit amount to integer minor units at the wire
// boundary, rounding half away from zero. All internal arithmetic stays in
// major units; this is the only place the x100 conversion happens.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Billing is the provider's view of a created charge mapped into our types.
type Billing struct {
	ExternalID    string
	Status        enums.PaymentStatus
	Method        enums.PaymentMethod
	Amount        decimal.Decimal
	QRCodeText    string
	BoletoURL     string
	BoletoBarcode string
	CardLast4     string
	TransactionID string
	ExpiresAt     *time.Time
}

type billingRequest struct {
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"payment_method"`
	WebhookURL    string              `json:"webhook_url,omitempty"`
	Metadata      billingMetadata     `json:"metadata"`
	Customer      *types.CustomerInfo `json:"customer,omitempty"`
	Card          *CardDetails        `json:"card,omitempty"`
}

type billingMetadata struct {
	OrderID      string              `json:"orderId"`
	CustomerInfo *types.CustomerInfo `json:"customerInfo,omitempty"`
}

type billingResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PixQRCodeText string `json:"pix_qr_code_text"`
	BoletoURL     string `json:"boleto_url"`
	BoletoBarcode string `json:"boleto_barcode"`
	CardLast4     string `json:"card_last4"`
	TransactionID string `json:"transaction_id"`
	ExpiresAt     string `json:"expires_at"`
	Error         string `json:"error"`
	Message       string `json:"message"`
}

func (p BillingParams) toRequest(webhookURL string) billingRequest {
	req := billingRequest{
		Amount:        MinorUnits(p.Amount),
		Currency:      string(enums.CurrencyBRL),
		PaymentMethod: string(p.Method),
		WebhookURL:    webhookURL,
		Metadata: billingMetadata{
			OrderID:      p.OrderID.String(),
			CustomerInfo: p.Customer,
		},
	}
	if p.Method == enums.PaymentMethodBoleto {
		req.Customer = p.Customer
	}
	if p.Method == enums.PaymentMethodCreditCard {
		req.Card = p.Card
	}
	return req
}

func (r billingResponse) toBilling(params BillingParams) *Billing {
	billing := &Billing{
		ExternalID:    r.ID,
		Status:        NormalizeStatus(r.Status),
		Method:        params.Method,
		Amount:        params.Amount,
		QRCodeText:    r.PixQRCodeText,
		BoletoURL:     r.BoletoURL,
		BoletoBarcode: r.BoletoBarcode,
		CardLast4:     r.CardLast4,
		TransactionID: r.TransactionID,
	}
	if ts := strings.TrimSpace(r.ExpiresAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			utc := parsed.UTC()
			billing.ExpiresAt = &utc
		}
	}
	return billing
}

// NormalizeStatus maps the provider's status vocabulary onto the local enum.
// Unknown values read as pending; absence of confirmation is not failure.
func NormalizeStatus(raw string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "completed", "confirmed":
		return enums.PaymentStatusPaid
	case "failed", "cancelled", "canceled", "refused":
		return enums.PaymentStatusFailed
	case "expired":
		return enums.PaymentStatusExpired
	default:
		return enums.PaymentStatusPending
	}
}
