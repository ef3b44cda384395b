package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Type      string `json:"type,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Retryable bool   `json:"retryable"`
	Recovery  string `json:"recovery,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

type responder struct {
	logger *zap.Logger
}

func (rs responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (rs responder) respondError(w http.ResponseWriter, status int, code, message string) {
	rs.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
		Type:  string(feedback.TypeValidation),
	})
}

// respondCartError renders any error from the services as a classified CartError.
func (rs responder) respondCartError(w http.ResponseWriter, r *http.Request, err error) {
	ce := feedback.Classify(err)
	status := statusFor(ce)
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
	}

	rs.respondJSON(w, status, ErrorResponse{
		Error:     ce.Message,
		Code:      ce.Code,
		Type:      string(ce.Type),
		Severity:  ce.Severity.String(),
		Retryable: ce.Retryable,
		Recovery:  string(ce.Recovery),
		ProductID: ce.ProductID,
	})
}

func statusFor(ce *feedback.CartError) int {
	switch ce.Type {
	case feedback.TypeValidation:
		switch ce.Code {
		case feedback.CodeSessionNotFound, feedback.CodeItemNotFound, feedback.CodeProductNotFound:
			return http.StatusNotFound
		case feedback.CodeSessionExpired:
			return http.StatusGone
		default:
			return http.StatusBadRequest
		}
	case feedback.TypeStock:
		return http.StatusConflict
	case feedback.TypePermission:
		if ce.Code == feedback.CodeUnauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case feedback.TypeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
