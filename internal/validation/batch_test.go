package validation

import (
	"testing"

	"github.com/hitoshi/scalaya/internal/model"
)

func TestValidateCustomerRegistration_Valid(t *testing.T) {
	errs := ValidateCustomerRegistration(model.CustomerRegistrationData{
		Email:     "jane@example.com",
		Password:  "Secret123",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
	if errs == nil {
		t.Error("expected empty non-nil slice")
	}
}

// TestValidateCustomerRegistration_Order は全フィールドが宣言順で報告されることを検証する。
func TestValidateCustomerRegistration_Order(t *testing.T) {
	errs := ValidateCustomerRegistration(model.CustomerRegistrationData{
		Email:     "bad",
		Password:  "short",
		FirstName: "",
		LastName:  "D0e",
		Phone:     "abc",
	})

	want := []string{"email", "password", "firstName", "lastName", "phone"}
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors, got %d: %+v", len(want), len(errs), errs)
	}
	for i, f := range want {
		if errs[i].Field != f {
			t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, f)
		}
	}
	if errs[0].Message != "Please enter a valid email address" {
		t.Errorf("unexpected email message: %q", errs[0].Message)
	}
}

func TestValidateCustomerRegistration_OnlyPassword(t *testing.T) {
	errs := ValidateCustomerRegistration(model.CustomerRegistrationData{
		Email:     "jane@example.com",
		Password:  "alllowercase1",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %+v", errs)
	}
	if errs[0].Field != "password" || errs[0].Message != "Password must include at least one uppercase letter" {
		t.Errorf("unexpected error: %+v", errs[0])
	}
}

func TestValidateSellerRegistration_Order(t *testing.T) {
	errs := ValidateSellerRegistration(model.SellerRegistrationData{
		Email:        "",
		Password:     "",
		FirstName:    "Jane",
		LastName:     "Doe",
		BusinessName: "",
		Phone:        "12-34",
	})

	want := []string{"email", "password", "businessName", "phone"}
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors, got %+v", len(want), errs)
	}
	for i, f := range want {
		if errs[i].Field != f {
			t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, f)
		}
	}
}

func TestFieldErrors_Map(t *testing.T) {
	errs := FieldErrors{
		{Field: "email", Message: "Email is required"},
		{Field: "phone", Message: "bad"},
	}
	m := errs.Map()
	if m["email"] != "Email is required" || m["phone"] != "bad" {
		t.Errorf("unexpected map: %v", m)
	}
	if !errs.Has("phone") || errs.Has("password") {
		t.Error("Has() returned unexpected result")
	}
}
