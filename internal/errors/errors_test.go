package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("down", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"processing", NewProcessingError("failed", cause), ErrorTypeProcessing, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"internal", NewInternalError("oops", cause), ErrorTypeInternal, http.StatusInternalServerError},
		{"not found", NewNotFoundError("gone", cause), ErrorTypeNotFound, http.StatusNotFound},
		{"calibration", NewCalibrationError("no yellow", nil), ErrorTypeCalibration, http.StatusUnprocessableEntity},
		{"no region", NewNoRegionError("no trap", nil), ErrorTypeNoRegion, http.StatusUnprocessableEntity},
		{"image load", NewImageLoadError("undecodable", cause), ErrorTypeImageLoad, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, tt.err.Type)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, tt.err.StatusCode)
			}
			if !IsType(tt.err, tt.wantType) {
				t.Errorf("IsType(%s) returned false", tt.wantType)
			}
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewNoRegionError("no trap boundary", nil)
	if got := err.Error(); got != "no_region: no trap boundary" {
		t.Errorf("Unexpected message: %q", got)
	}

	wrapped := NewImageLoadError("decode failed", fmt.Errorf("unexpected EOF"))
	if got := wrapped.Error(); got != "image_load: decode failed (caused by: unexpected EOF)" {
		t.Errorf("Unexpected message: %q", got)
	}
}

func TestIsType_Wrapped(t *testing.T) {
	base := NewCalibrationError("empty pool", nil)
	err := fmt.Errorf("run aborted: %w", base)

	if !IsType(err, ErrorTypeCalibration) {
		t.Error("Expected wrapped calibration error to be detected")
	}
	if IsType(err, ErrorTypeNoRegion) {
		t.Error("Calibration error must not match no_region")
	}
	if TypeOf(err) != ErrorTypeCalibration {
		t.Errorf("Expected TypeOf to unwrap, got %s", TypeOf(err))
	}
	if GetStatusCode(err) != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", GetStatusCode(err))
	}
}

func TestForeignErrors(t *testing.T) {
	err := errors.New("plain")
	if IsType(err, ErrorTypeInternal) {
		t.Error("Plain errors are not AppErrors")
	}
	if TypeOf(err) != ErrorTypeInternal {
		t.Errorf("Expected internal for foreign errors, got %s", TypeOf(err))
	}
	if GetStatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", GetStatusCode(err))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewImageLoadError("load", cause)
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}
