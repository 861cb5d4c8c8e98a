package handler

import (
    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo's Validator interface
// so handlers can call c.Validate on bound request DTOs.
type Validator struct {
    v *validator.Validate
}

// NewValidator returns a Validator with struct-tag validation enabled.
func NewValidator() *Validator {
    return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (val *Validator) Validate(i interface{}) error {
    if err := val.v.Struct(i); err != nil {
        return echo.NewHTTPError(400, err.Error())
    }
    return nil
}
