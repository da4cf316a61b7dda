package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"exam-allocation/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Result is the envelope of every JSON response.
// code: 2000 on success, -1 on error. kind and id are set for domain errors.
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	ID      string `json:"id,omitempty"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

const maxBodyBytes = 1 << 20

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status of its kind. Unclassified errors
// and persistence failures are logged.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	res := Fail(err.Error())
	res.Kind = string(apperrors.KindOf(err))
	res.ID = apperrors.IDOf(err)
	writeJSON(w, status, res)
}

// writeValidationError reports each failing field with the rule it broke.
func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, Fail("invalid input"))
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	res := Fail("validation failed")
	res.Kind = string(apperrors.KindInvalidAllocationInput)
	res.Result = fields
	writeJSON(w, http.StatusBadRequest, res)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
