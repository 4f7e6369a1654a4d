package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fortivault/fortivault/internal/errs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct-tag validation and maps failures to errs.ErrValidation.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return fmt.Errorf("%w: invalid %s", errs.ErrValidation, strings.Join(fields, ", "))
}
