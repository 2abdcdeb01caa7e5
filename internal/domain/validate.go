package domain

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// structValidator covers the per-field rules declared in struct tags; the
// entities' Validate methods layer the cross-field rules on top.
var structValidator = validator.New()

func validateStruct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		f := fieldErrs[0]
		return NewValidationError(f.Field(), "failed "+f.Tag()+" check")
	}
	return err
}
