package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidationFields collects failed rules per field. It returns nil when err is
// not a validation failure.
func ValidationFields(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string][]string, len(verrs))
	for _, fieldErr := range verrs {
		rule := fieldErr.Tag()
		if fieldErr.Param() != "" {
			rule = rule + "=" + fieldErr.Param()
		}
		fields[fieldErr.Field()] = append(fields[fieldErr.Field()], rule)
	}
	return fields
}

// RuleMessage renders a failed rule such as "min=8" as UI text. Anything that is
// not a known rule is returned unchanged, so backend-provided sentences pass
// through.
func RuleMessage(rule string) string {
	name, param, _ := strings.Cut(rule, "=")
	switch name {
	case "required":
		return "Este campo es obligatorio"
	case "email":
		return "Introduce un correo válido"
	case "min":
		return fmt.Sprintf("Debe tener al menos %s caracteres", param)
	case "max":
		return fmt.Sprintf("No puede superar %s caracteres", param)
	case "eqfield":
		return "Las contraseñas no coinciden"
	case "unique":
		return "Ya existe una cuenta con este correo"
	default:
		return rule
	}
}
