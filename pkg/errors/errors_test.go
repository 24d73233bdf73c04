package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotPaid, http.StatusPaymentRequired},
		{CodeAlreadyRented, http.StatusConflict},
		{CodeTermsRequired, http.StatusPreconditionRequired},
		{CodeAccessDenied, http.StatusForbidden},
		{CodeAlreadyReturned, http.StatusUnprocessableEntity},
		{CodeRentalNotFound, http.StatusNotFound},
		{CodeCapacityExceeded, http.StatusConflict},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("MetadataFor(%s).HTTPStatus = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected fallback status %d", meta.HTTPStatus)
	}
}

func TestAccessDeniedIsOpaque(t *testing.T) {
	meta := MetadataFor(CodeAccessDenied)
	if meta.DetailsAllowed {
		t.Fatal("access denied must never surface details")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "lookup rental")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
	if As(err).Code() != CodeDependency {
		t.Fatalf("unexpected code %s", As(err).Code())
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeAlreadyRented, "active rental exists")
	if !IsCode(err, CodeAlreadyRented) {
		t.Fatal("IsCode should match")
	}
	if IsCode(err, CodeNotPaid) {
		t.Fatal("IsCode should not match a different code")
	}
	if IsCode(fmt.Errorf("plain"), CodeNotPaid) {
		t.Fatal("IsCode should not match untyped errors")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsCode(wrapped, CodeAlreadyRented) {
		t.Fatal("IsCode should unwrap")
	}
}
