package errors

import (
	"fmt"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	for code, want := range metadataByCode {
		got := MetadataFor(code)
		if got != want {
			t.Fatalf("metadata mismatch for %s: got %+v want %+v", code, got, want)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	got := MetadataFor(Code("SOMETHING_ELSE"))
	if got != metadataByCode[CodeInternal] {
		t.Fatalf("expected internal metadata fallback, got %+v", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "untyped", err: fmt.Errorf("boom"), want: true},
		{name: "insufficient funds", err: New(CodeInsufficientFunds, "short"), want: false},
		{name: "gateway transient", err: New(CodeGatewayTransient, "503"), want: true},
		{name: "gateway permanent", err: New(CodeGatewayPermanent, "rejected"), want: false},
		{name: "wrapped transient", err: fmt.Errorf("attempt: %w", New(CodeGatewayTransient, "timeout")), want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := Wrap(CodeImbalanced, fmt.Errorf("USD off by 5"), "transaction does not balance")
	if !HasCode(err, CodeImbalanced) {
		t.Fatal("expected imbalanced code")
	}
	if HasCode(err, CodeValidation) {
		t.Fatal("unexpected validation code")
	}
	wrapped := fmt.Errorf("post: %w", err)
	if !HasCode(wrapped, CodeImbalanced) {
		t.Fatal("expected code through wrapping")
	}
}

func TestErrorUnwrapAndDetails(t *testing.T) {
	cause := fmt.Errorf("root")
	err := Wrap(CodeDependency, cause, "redis down").WithDetails(map[string]string{"dep": "redis"})
	if err.Unwrap() != cause {
		t.Fatal("expected cause to unwrap")
	}
	if err.Details() == nil {
		t.Fatal("expected details")
	}
	if err.Error() != "DEPENDENCY_ERROR: redis down" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}
