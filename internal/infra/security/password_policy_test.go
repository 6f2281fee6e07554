package security

import (
	"errors"
	"testing"
)

func TestPasswordValidatorMinLength(t *testing.T) {
	v := NewPasswordValidator(MinLengthRule(8))

	if err := v.Validate("short"); err == nil {
		t.Fatal("expected violation for short password")
	}
	if err := v.Validate("long enough password"); err != nil {
		t.Fatalf("unexpected violation: %v", err)
	}
}

func TestPasswordValidatorStrength(t *testing.T) {
	v := NewPasswordValidator(MinLengthRule(8), RequirePasswordStrengthRule(2))

	err := v.Validate("password")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got: %v", err)
	}
	if violation.Code != "weak_password" {
		t.Fatalf("unexpected violation code: %s", violation.Code)
	}

	if err := v.Validate("zT9#mQv!candle-orbit"); err != nil {
		t.Fatalf("strong password rejected: %v", err)
	}
}

func TestPasswordValidatorStopsAtFirstViolation(t *testing.T) {
	v := NewPasswordValidator(MinLengthRule(8), RequirePasswordStrengthRule(4))

	err := v.Validate("abc")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got: %v", err)
	}
	if violation.Code != "min_length" {
		t.Fatalf("expected min_length first, got: %s", violation.Code)
	}
}
