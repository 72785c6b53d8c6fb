package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
)

func recordError(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应不是 JSON: %v", err)
	}
	return w, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperrors.NewValidation("bad"), http.StatusBadRequest},
		{"not found", apperrors.NewNotFound("template", 1), http.StatusNotFound},
		{"conflict", apperrors.NewConflict("busy"), http.StatusConflict},
		{"generation", &apperrors.GenerationError{SubsectionID: 1, Err: errors.New("model down")}, http.StatusBadGateway},
		{"storage", apperrors.NewStorage("save", errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, body := recordError(t, tc.err)
			if w.Code != tc.code {
				t.Errorf("expected %d, got %d", tc.code, w.Code)
			}
			if body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestRespondErrorBlockedPayload(t *testing.T) {
	blocked := &apperrors.BlockedError{
		RequiredInputs: []apperrors.RequiredInput{{Key: "quarter", Label: "Quarter", Type: "string"}},
		BlockingErrors: []apperrors.BlockingError{{SubsectionID: 7, Reason: "Unknown data source: x"}},
	}
	w, body := recordError(t, blocked)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if ready, ok := body["ready"].(bool); !ok || ready {
		t.Errorf("expected ready=false, got %v", body["ready"])
	}
	inputs, ok := body["required_inputs"].([]any)
	if !ok || len(inputs) != 1 {
		t.Fatalf("expected 1 required input, got %v", body["required_inputs"])
	}
	blockers, ok := body["blocking_errors"].([]any)
	if !ok || len(blockers) != 1 {
		t.Fatalf("expected 1 blocking error, got %v", body["blocking_errors"])
	}
}
