package apperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail bool
	}{
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, CodeInvalidInput, false},
		{"not found wrapped", fmt.Errorf("lookup: %w", NotFound("missing")), http.StatusNotFound, CodeJobNotFound, false},
		{"extraction", New(CodeExtractionFailed, "failed", errors.New("last cause")), http.StatusBadGateway, CodeExtractionFailed, true},
		{"canceled", context.Canceled, http.StatusRequestTimeout, "REQUEST_CANCELED", false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			Respond(c, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if payload["code"] != tc.wantCode {
				t.Fatalf("unexpected code: %s", payload["code"])
			}
			if _, ok := payload["details"]; ok != tc.wantDetail {
				t.Fatalf("details presence = %v, want %v", ok, tc.wantDetail)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidInput("x"))
	if !HasCode(err, CodeInvalidInput) {
		t.Fatal("expected wrapped code to match")
	}
	if HasCode(err, CodeJobNotFound) {
		t.Fatal("unexpected match for different code")
	}
	if HasCode(errors.New("plain"), CodeInvalidInput) {
		t.Fatal("plain error must not match")
	}
}
