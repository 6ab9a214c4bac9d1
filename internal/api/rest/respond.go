package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/errors"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a typed domain error onto its HTTP status and JSON body.
// Unknown errors become opaque 500s; internals never leak to callers.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		logger.Error("unhandled error", zap.Error(err))
		appErr = errors.NewInternalError("internal server error")
	}

	if appErr.Type == errors.ErrorTypeInternal && appErr.Cause != nil {
		logger.Error("internal error", zap.Error(appErr.Cause), zap.String("code", appErr.Code))
	}

	writeJSON(w, errors.GetStatusCode(appErr), errorResponse{Error: errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func writeValidationError(w http.ResponseWriter, logger *zap.Logger, msg string) {
	writeError(w, logger, errors.NewValidationError("INVALID_REQUEST", msg))
}
