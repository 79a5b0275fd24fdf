package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ApiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   ApiError `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, apiErr ApiError) {
	if code >= 500 {
		zap.L().Error("responding with 5XX error", zap.String("code", apiErr.Code), zap.String("message", apiErr.Message))
	}

	response := ErrorResponse{
		Success: false,
		Error:   apiErr,
	}

	respondWithJSON(w, code, response)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		fallbackError := ErrorResponse{
			Success: false,
			Error: ApiError{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to generate response",
			},
		}
		json.NewEncoder(w).Encode(fallbackError)
		return
	}

	w.WriteHeader(code)
	w.Write(data)
}

// decodeJSON reads a request body into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) *ApiError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ApiError{
			Code:    "INVALID_REQUEST",
			Message: "Invalid request body",
			Details: err.Error(),
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ApiError{Code: "INVALID_REQUEST", Message: err.Error()}
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return &ApiError{
			Code:    "VALIDATION_FAILED",
			Message: "Request validation failed",
			Details: fields,
		}
	}
	return nil
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
