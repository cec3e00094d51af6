package webhooks

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/belezaviva/belezaviva-backend/api/responses"
	abacatewebhook "github.com/belezaviva/belezaviva-backend/internal/webhooks/abacatepay"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

// maxWebhookBody caps how much of a delivery gets buffered.
const maxWebhookBody = 1 << 20

// AbacatePayWebhook receives status notifications from the payment provider.
// Deliveries authenticate with the shared secret in the webhookSecret query
// parameter; the provider offers no signature scheme.
func AbacatePayWebhook(svc *abacatewebhook.Service, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "webhook secret not configured"))
			return
		}

		provided := r.URL.Query().Get("webhookSecret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
