// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// IsValidClock проверяет, что строка задаёт время суток в 24-часовом формате HH:MM или H:MM.
func IsValidClock(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// New создаёт валидатор структур с зарегистрированным правилом "clock".
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Регистрация может завершиться ошибкой только при пустом имени тега.
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return IsValidClock(fl.Field().String())
	})
	return v
}

// FormatErrors превращает ошибки валидатора в сообщения по именам полей.
func FormatErrors(err error) map[string]string {
	res := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return res
	}

	for _, e := range verrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			res[field] = e.Field() + " is required"
		case "clock":
			res[field] = e.Field() + " must be a 24-hour HH:MM time"
		default:
			res[field] = e.Field() + " is invalid"
		}
	}

	return res
}
