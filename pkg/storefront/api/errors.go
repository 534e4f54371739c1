package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps an error onto an HTTP status and error code. Upload and
// delete failures are checked before store unavailability because they may
// wrap it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, storefront.ErrValidationFailed):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, storefront.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, storefront.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storefront.ErrConflict), errors.Is(err, storefront.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, storefront.ErrAssetUploadFailed):
		return http.StatusBadGateway, "asset_upload_failed"
	case errors.Is(err, storefront.ErrAssetDeleteFailed):
		return http.StatusBadGateway, "asset_delete_failed"
	case errors.Is(err, storefront.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	detail := ErrorDetail{Code: code, Message: err.Error()}
	var ve *storefront.ValidationError
	if errors.As(err, &ve) {
		detail.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		detail.Message = "An internal server error occurred"
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: detail})
}

// badRequest reports malformed input that never reached the service.
func badRequest(w http.ResponseWriter, r *http.Request, field, reason string) {
	writeError(w, r, &storefront.ValidationError{Field: field, Reason: reason})
}
