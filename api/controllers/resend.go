package controllers

import (
	"context"
	"net/http"

	"github.com/emrmusicgroup/tape16-api/api/responses"
	"github.com/emrmusicgroup/tape16-api/api/validators"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
)

// ResendMessage is returned for every resend outcome. Unknown orders,
// revoked orders, and mismatched emails all get the same body so the
// endpoint cannot be used to probe which orders exist.
const ResendMessage = "If a matching purchase exists, the serial email has been sent."

type resendService interface {
	ResendSerial(ctx context.Context, orderID, email string) (bool, error)
}

type resendRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

type resendResponse struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	EmailQueued bool   `json:"emailQueued,omitempty"`
}

// ResendSerial lets a buyer re-request their serial email by order id.
func ResendSerial(svc resendService, logg *logger.Logger, mets *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "issuance service unavailable"))
			return
		}

		mets.IncResendRequest()

		var payload resendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		queued, err := svc.ResendSerial(ctx, payload.OrderID, payload.Email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resendResponse{
			OK:          true,
			Message:     ResendMessage,
			EmailQueued: queued,
		})
	}
}
