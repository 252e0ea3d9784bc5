package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// errorStatus maps domain errors onto HTTP status codes. Terms the accrual
// engine refuses are 422 rather than 400 because the request itself was well
// formed.
func errorStatus(err error) (int, string, string) {
	field := apperrors.FieldOf(err)

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error(), field
	case errors.Is(err, apperrors.ErrInvalidLoanTerms):
		return http.StatusUnprocessableEntity, err.Error(), field
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrLoanClosed):
		return http.StatusConflict, err.Error(), field
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		return http.StatusBadRequest, err.Error(), field
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", ""
	default:
		return http.StatusInternalServerError, "An unexpected error occurred.", ""
	}
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    apperrors.Code(err),
			Message: message,
			Field:   field,
		},
	})
}

// logLevel is Warn for client errors and Error for everything else.
func logLevel(err error) slog.Level {
	if status, _, _ := errorStatus(err); status < http.StatusInternalServerError {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func getIDFromURL(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	if idStr == "" {
		return 0, fmt.Errorf("%w: %s not found in URL path", apperrors.ErrInvalidArgument, param)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s format in URL path: %s", apperrors.ErrInvalidArgument, param, idStr)
	}
	return id, nil
}

// parseAsOf reads the optional asOf query parameter. A missing parameter
// yields nil.
func parseAsOf(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return nil, nil
	}
	asOf, err := dto.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: asOf: %v", apperrors.ErrInvalidArgument, err)
	}
	return &asOf, nil
}
