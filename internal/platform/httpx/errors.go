package httpx

import (
	"log/slog"
	"net/http"
)

// Unauthorized rejects a request that carries no actor identity.
func Unauthorized(w http.ResponseWriter) {
	Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor on request")
}

// Internal logs the error and answers 500 without leaking its detail.
func Internal(w http.ResponseWriter, logger *slog.Logger, scope string, err error) {
	logger.Error(scope, slog.Any("error", err))
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
