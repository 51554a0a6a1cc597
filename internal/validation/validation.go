// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// MissingFieldsError сообщает об отсутствии обязательных полей запроса.
type MissingFieldsError struct {
	// Required перечисляет все обязательные поля запроса в порядке объявления.
	Required []string
	// Missing перечисляет поля, которых нет в запросе.
	Missing []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Required, ", ")
}

// Required проверяет, что в структуре req заполнены все поля с тегом validate:"required".
// Поля-указатели считаются заполненными, если они не nil, даже при нулевом значении.
func Required(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}

	return &MissingFieldsError{
		Required: requiredFields(reflect.TypeOf(req)),
		Missing:  missing,
	}
}

func requiredFields(t reflect.Type) []string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if rule == "required" {
				fields = append(fields, jsonName(f))
				break
			}
		}
	}
	return fields
}
