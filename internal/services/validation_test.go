package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/votepay/backend/internal/errors"
)

type purchaseForm struct {
	Kind     string `json:"kind" validate:"required,oneof=VOTE TICKET"`
	Quantity int64  `json:"quantity" validate:"required,gte=1"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&purchaseForm{Kind: "VOTE", Quantity: 3})
		assert.NoError(t, err)
	})

	t.Run("invalid struct uses json field names", func(t *testing.T) {
		err := vh.ValidateStruct(&purchaseForm{Kind: "DONATION", Quantity: 0, Email: "nope"})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Len(t, validationErrors, 3)

		fields := map[string]string{}
		for _, fe := range validationErrors {
			fields[fe.Field()] = fe.Tag()
		}
		assert.Equal(t, "oneof", fields["kind"])
		assert.Equal(t, "required", fields["quantity"])
		assert.Equal(t, "email", fields["email"])
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&purchaseForm{Kind: "VOTE"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Equal(t, "validation_error", response.Code)
		assert.Contains(t, response.Details, "quantity")
	})

	t.Run("non validator error is not treated as field errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("plain"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}

func TestSendAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid state", apperrors.ErrNotPurchasable.WithDetails("event is ENDED"), http.StatusConflict, "invalid_state"},
		{"not found", apperrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
		{"no provider", apperrors.ErrNoProvider, http.StatusServiceUnavailable, "provider_unavailable"},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"plain error becomes internal", errors.New("db exploded"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SendAppError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.code, response.Code)
			if tt.status >= 500 {
				assert.Nil(t, response.Details)
			}
		})
	}

	t.Run("details are exposed for client errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, apperrors.ErrNotPurchasable.WithDetails("event is ENDED"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "event is ENDED", response.Details["reason"])
	})
}
