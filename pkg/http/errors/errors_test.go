package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, ErrCodeValidationFailed, "score must be a non-negative integer", "score")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"validation_failed","message":"score must be a non-negative integer","field":"score"}`, rec.Body.String())
}

func TestRespondHelpersStatus(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
	}{
		{"not found", func(w http.ResponseWriter) { RespondNotFound(w, ErrCodeNotFound, "x") }, http.StatusNotFound},
		{"forbidden", func(w http.ResponseWriter) { RespondForbidden(w, ErrCodeNotAuthorized, "x") }, http.StatusForbidden},
		{"conflict", func(w http.ResponseWriter) { RespondConflict(w, ErrCodeAlreadyResolved, "x") }, http.StatusConflict},
		{"unavailable", func(w http.ResponseWriter) { RespondServiceUnavailable(w, ErrCodeServiceUnavailable, "x") }, http.StatusServiceUnavailable},
		{"internal", func(w http.ResponseWriter) { RespondInternalError(w, "x") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "field")
		})
	}
}
