// Package validation provides struct tag validation backed by
// go-playground/validator, reporting failures as INVALID_INPUT AppErrors.
//
//	type Request struct {
//	    Table string `json:"table" validate:"required,tablename"`
//	}
//	err := validation.Validate(req)
package validation
