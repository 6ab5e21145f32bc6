package vaultd

import (
	"encoding/json"
	"errors"
	"net/http"

	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an operation error onto an HTTP status and stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized, "Unauthenticated"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, "ModulePaused"
	case errors.Is(err, vault.ErrStakeNotFound):
		return http.StatusNotFound, "StakeNotFound"
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusConflict, "InsufficientBalance"
	case errors.Is(err, bank.ErrInvalidAmount), errors.Is(err, bank.ErrSelfTransfer):
		return http.StatusBadRequest, "InvalidTransfer"
	}
	switch vault.KindOf(err) {
	case vault.KindValidation:
		return http.StatusBadRequest, vault.CodeOf(err)
	case vault.KindPermission:
		return http.StatusForbidden, vault.CodeOf(err)
	case vault.KindState:
		return http.StatusConflict, vault.CodeOf(err)
	}
	return http.StatusInternalServerError, "Internal"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	writeJSONError(w, status, code, message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
