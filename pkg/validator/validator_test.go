package validator

import (
	"errors"
	"testing"

	validators "github.com/go-playground/validator/v10"
)

type sample struct {
	Title    string   `json:"title" validate:"required"`
	Messages []string `json:"messages" validate:"required"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := New().ValidateStruct(sample{Title: "Chat 1"})

	var fieldErrs validators.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if fieldErrs[0].Field() != "messages" {
		t.Errorf("expected field 'messages', got %s", fieldErrs[0].Field())
	}
}

func TestValidateStructAcceptsEmptyNonNilSlice(t *testing.T) {
	if err := New().ValidateStruct(sample{Title: "Chat 1", Messages: []string{}}); err != nil {
		t.Errorf("expected empty list to satisfy required, got %v", err)
	}
}
