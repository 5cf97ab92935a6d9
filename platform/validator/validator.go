// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the shared custom tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("channel", validateChannel)
	_ = v.RegisterValidation("hour", validateHour)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

func validateChannel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "whatsapp", "email", "task", "tarefa":
		return true
	default:
		return false
	}
}

func validateHour(fl validator.FieldLevel) bool {
	h := fl.Field().Int()
	return h >= 0 && h <= 24
}
