package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
}

func TestAppError_UnknownModel(t *testing.T) {
	err := UnknownModel("Transformer", []string{"linear", "rnns"})
	if err.Code != ErrCodeUnknownModel {
		t.Errorf("expected UNKNOWN_MODEL, got %s", err.Code)
	}
	if err.Details["model"] != "Transformer" {
		t.Errorf("expected model=Transformer, got %v", err.Details["model"])
	}
	if !strings.Contains(err.Error(), "Transformer") {
		t.Errorf("expected model name in message, got %q", err.Error())
	}
}

func TestAppError_InvalidConfig_EmptyKey(t *testing.T) {
	err := InvalidConfig("", "bad")
	if _, ok := err.Details["key"]; ok {
		t.Error("expected no 'key' detail when key is empty")
	}
}

func TestAppError_NotFound(t *testing.T) {
	err := NotFound("split", "dev")
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Details["id"] != "dev" {
		t.Errorf("expected id=dev, got %v", err.Details["id"])
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := IOError("read manifest", nil).WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := NotFound("run", "1").WithDetails(map[string]any{"extra": "info"})
	if err.Details["extra"] != "info" {
		t.Errorf("expected extra=info in details")
	}
	if err.Details["resource"] != "run" {
		t.Error("expected original details to be preserved")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("construct: %w", UnknownMetric("bleu", nil))
	if !IsCode(wrapped, ErrCodeUnknownMetric) {
		t.Error("expected wrapped error to match UNKNOWN_METRIC")
	}
	if IsCode(wrapped, ErrCodeUnknownModel) {
		t.Error("did not expect UNKNOWN_MODEL")
	}
	if IsCode(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("plain errors carry no code")
	}
}

func TestStatusAndResponse(t *testing.T) {
	err := NotFound("run", "abc")
	if Status(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %d", Status(err))
	}
	if Status(fmt.Errorf("x")) != http.StatusInternalServerError {
		t.Error("expected 500 for plain errors")
	}
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeNotFound || resp.Error.Details["id"] != "abc" {
		t.Errorf("unexpected response %+v", resp)
	}
}
