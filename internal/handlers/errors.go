package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/platform/httpx"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
	"github.com/easyorder/quickorder/internal/services"
)

const (
	messageDisabled           = "Quick order is not enabled."
	messageInvalidFormKey     = "Invalid form key."
	messageQuoteInputRequired = "Product ID and Country are required."
	messageShippingUnknown    = "The selected shipping method is not available."
	messagePaymentUnknown     = "The selected payment method is not available."
	messageProductUnavailable = "This product is not available."
	messageInvalidQuantity    = "Invalid quantity."
	messageCommitFailed       = "Unable to create order. Please try again later."
	messageShippingFailed     = "Unable to get shipping methods."
)

// writeServiceError maps service failures onto the shopper facing envelope. Known business
// failures are rejections; anything else is logged and answered with the generic message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, event string, err error) {
	httpx.WriteError(ctx, w, toHTTPError(ctx, event, err))
}

func toHTTPError(ctx context.Context, event string, err error) httpx.Error {
	var validation *services.ValidationError
	var userErr *domain.UserError

	switch {
	case errors.Is(err, services.ErrQuickOrderDisabled):
		return httpx.Reject("quick_order_disabled", messageDisabled)
	case errors.Is(err, services.ErrInvalidFormKey):
		return httpx.Reject("invalid_form_key", messageInvalidFormKey)
	case errors.Is(err, services.ErrQuoteInputRequired):
		return httpx.Reject("missing_input", messageQuoteInputRequired)
	case errors.Is(err, services.ErrShippingMethodUnavailable):
		return httpx.Reject("shipping_method_unavailable", messageShippingUnknown)
	case errors.Is(err, services.ErrPaymentMethodUnavailable):
		return httpx.Reject("payment_method_unavailable", messagePaymentUnknown)
	case errors.Is(err, services.ErrProductUnavailable):
		return httpx.Reject("product_unavailable", messageProductUnavailable)
	case errors.Is(err, services.ErrInvalidQuantity):
		return httpx.Reject("invalid_quantity", messageInvalidQuantity)
	case errors.As(err, &validation):
		return httpx.Reject("validation_failed", validation.Message).WithDetails(map[string]any{"field": validation.Field})
	case errors.As(err, &userErr):
		requestctx.Logger(ctx).Warn(event, zap.Error(err))
		return httpx.Reject("order_rejected", userErr.Message)
	case errors.Is(err, services.ErrOrderCommitFailed):
		requestctx.Logger(ctx).Error(event, zap.Error(err))
		return httpx.Reject("order_failed", messageCommitFailed)
	default:
		requestctx.Logger(ctx).Error(event, zap.Error(err))
		return httpx.Reject("unexpected_error", httpx.MessageUnexpected)
	}
}

// writeDecodeError answers transport level body failures.
func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errUnsupportedContent):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", "content type must be application/json or form encoded", http.StatusUnsupportedMediaType))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body could not be parsed", http.StatusBadRequest))
	}
}
