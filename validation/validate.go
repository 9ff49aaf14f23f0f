package validation

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/changefeed/errors"
)

// tableNamePattern accepts names that are valid stream keys, topics and
// notification channels alike.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var validate = newValidator()

// FieldError describes one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	if err := v.RegisterValidation("tablename", func(fl validator.FieldLevel) bool {
		return TableName(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// fieldName reports a field by its json name, or its Go name in
// snake_case when it has none.
func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return snakeCase(f.Name)
	}
	return name
}

// Validate checks s against its `validate` struct tags and returns an
// INVALID_INPUT AppError listing every failed field under Details["fields"].
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}

	fields := make([]FieldError, len(verrs))
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Message: describe(fe)}
		parts[i] = fields[i].Field + ": " + fields[i].Message
	}
	appErr := errors.Validation(strings.Join(parts, "; "))
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}

// TableName reports whether name is a valid table name.
func TableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

var tagMessages = map[string]string{
	"required":  "is required",
	"url":       "must be a valid URL",
	"tablename": "must contain only letters, digits and underscores",
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return "is invalid"
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
