package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pixmart/pixmart/internal/classify"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// respondFlowError maps a classified flow error onto an HTTP status.
func respondFlowError(w http.ResponseWriter, cerr *classify.Error) {
	status := http.StatusUnprocessableEntity
	switch cerr.Kind {
	case classify.KindValidation:
		status = http.StatusBadRequest
	case classify.KindSessionInvalid:
		status = http.StatusConflict
	case classify.KindCardDeclined, classify.KindIncompleteCardNumber,
		classify.KindIncompleteExpiry, classify.KindIncompleteCvc:
		status = http.StatusPaymentRequired
	case classify.KindIntentInitFailed:
		status = http.StatusBadGateway
	}
	respondWithError(w, status, string(cerr.Kind), cerr.Error())
}
