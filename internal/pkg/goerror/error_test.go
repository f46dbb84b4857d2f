package goerror

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want int
	}{
		{name: "invalid input", code: CodeInvalidInput, want: http.StatusUnprocessableEntity},
		{name: "not found", code: CodeNotFound, want: http.StatusNotFound},
		{name: "unauthorized", code: CodeUnauthorized, want: http.StatusUnauthorized},
		{name: "conflict", code: CodeConflict, want: http.StatusConflict},
		{name: "too many", code: CodeTooManyRequest, want: http.StatusTooManyRequests},
		{name: "gone", code: CodeGone, want: http.StatusGone},
		{name: "bad gateway", code: CodeBadGateway, want: http.StatusBadGateway},
		{name: "unavailable", code: CodeUnavailable, want: http.StatusServiceUnavailable},
		{name: "internal", code: CodeInternal, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			err := NewBusiness("boom", tt.code)

			// Act
			var ge *Error
			if !errors.As(err, &ge) {
				t.Fatalf("expected *Error, got %T", err)
			}

			// Assert
			if got := ge.StatusCode(); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewBusinessWithCause(t *testing.T) {
	// Arrange
	cause := errors.New("upstream said no")

	// Act
	err := NewBusiness("Delivery failed", CodeBadGateway, WithCause(cause), WithField("kind", "delivery"))

	// Assert
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "Delivery failed" {
		t.Errorf("Error() = %q", err.Error())
	}
	var ge *Error
	errors.As(err, &ge)
	if ge.Fields()["kind"] != "delivery" {
		t.Errorf("fields = %v", ge.Fields())
	}
	if CodeOf(err) != CodeBadGateway {
		t.Errorf("CodeOf() = %s", CodeOf(err))
	}
}

func TestNewServerHidesMessage(t *testing.T) {
	// Arrange
	cause := errors.New("redis down")

	// Act
	err := NewServer(cause)

	// Assert
	if err.Error() != "redis down" {
		t.Errorf("Error() = %q", err.Error())
	}
	var ge *Error
	errors.As(err, &ge)
	if ge.Msg() != "Internal server error" {
		t.Errorf("Msg() = %q", ge.Msg())
	}
}

func TestNewInvalidInputFields(t *testing.T) {
	// Act
	err := NewInvalidInput(nil, "code", "must be 6 digits")

	// Assert
	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *Error")
	}
	if ge.Code() != CodeInvalidInput || ge.Fields()["code"] != "must be 6 digits" {
		t.Errorf("unexpected error %s", ge.String())
	}

	if CodeOf(NewInvalidInput(nil, "odd")) != CodeInvalidFormat {
		t.Errorf("odd kv should be invalid format")
	}
}
