// Package filter разбивает список записей на представления "ожидающие", "подтверждённые" и "все".
package filter

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/emind-bff/internal/model"
)

// ErrUnknownFilter возвращается для неизвестного значения фильтра.
var ErrUnknownFilter = errors.New("unknown appointment filter")

// Filter описывает выбранное представление списка записей.
type Filter string

const (
	Pending  Filter = "pending"
	Verified Filter = "verified"
	All      Filter = "all"
)

// ParseFilter преобразует строку в фильтр. Пустая строка означает All.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return All, nil
	case Pending, Verified, All:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Appointments возвращает новый срез записей, прошедших фильтр, в исходном порядке.
// Входной срез не изменяется.
func Appointments(appointments []model.Appointment, f Filter, role model.Role) []model.Appointment {
	var keep func(a *model.Appointment) bool

	switch f {
	case Pending:
		keep = func(a *model.Appointment) bool {
			if a.Status != model.StatusPaymentUploaded || a.PaymentDetail.IsVerified() {
				return false
			}
			// Первую консультацию психолог не подтверждает: её оплату проверяет администратор.
			if role == model.RolePsychologist && a.FirstAppointment() {
				return false
			}
			return true
		}
	case Verified:
		keep = func(a *model.Appointment) bool {
			return a.PaymentDetail.IsVerified() ||
				a.Status == model.StatusPaymentVerified ||
				a.Status == model.StatusConfirmed
		}
	default:
		// All и любое непроверенное значение: копия без фильтрации.
		keep = func(*model.Appointment) bool { return true }
	}

	res := make([]model.Appointment, 0, len(appointments))
	for i := range appointments {
		if keep(&appointments[i]) {
			res = append(res, appointments[i])
		}
	}
	return res
}
