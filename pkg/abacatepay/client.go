package abacatepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/belezaviva/belezaviva-backend/pkg/config"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

const (
	billingPath              = "/v1/billing"
	errorBodyReadLimit int64 = 2048
)

var errAPIKeyRequired = errors.New("abacatepay api key is required")

// Client wraps the AbacatePay billing API. The provider ships no Go SDK, so
// this is a plain JSON-over-HTTP client with a fixed request timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	webhookURL string
	logger     *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the AbacatePay client from configuration.
func NewClient(cfg config.AbacatePayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		webhookURL: cfg.WebhookURL(),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}

	return client, nil
}

// CreateBilling registers one charge with the provider and maps the response.
// A transport failure or non-2xx response never marks anything failed locally;
// absence of confirmation is not failure.
func (c *Client) CreateBilling(ctx context.Context, params BillingParams) (*Billing, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "abacatepay client not configured")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(params.toRequest(c.webhookURL))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal billing request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+billingPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build billing request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log(ctx, "request", map[string]any{
		"order_id": params.OrderID.String(),
		"method":   params.Method.String(),
		"amount":   MinorUnits(params.Amount),
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log(ctx, "transport_error", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute billing request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.providerError(ctx, resp)
	}

	var apiResp billingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode billing response")
	}
	if apiResp.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing response missing charge id")
	}

	billing := apiResp.toBilling(params)
	c.log(ctx, "response", map[string]any{
		"external_id": billing.ExternalID,
		"status":      billing.Status.String(),
	})
	return billing, nil
}

func (c *Client) providerError(ctx context.Context, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	message := strings.TrimSpace(string(raw))
	var apiResp billingResponse
	if err := json.Unmarshal(raw, &apiResp); err == nil {
		if apiResp.Error != "" {
			message = apiResp.Error
		} else if apiResp.Message != "" {
			message = apiResp.Message
		}
	}

	c.log(ctx, "provider_error", map[string]any{
		"status":  resp.StatusCode,
		"message": message,
	})

	return pkgerrors.Wrap(
		pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", resp.StatusCode, message),
		"billing request failed",
	).WithHTTPStatus(resp.StatusCode).WithDetails(map[string]any{
		"provider_status":  resp.StatusCode,
		"provider_message": message,
	})
}

func (c *Client) log(ctx context.Context, phase string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	logFields := map[string]any{"operation": "create_billing", "phase": phase}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "transport_error", "provider_error":
		c.logger.Error(ctx, "abacatepay create_billing", errors.New(fmt.Sprint(fields["error"], fields["message"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("abacatepay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "cvv", "secret", "document", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
