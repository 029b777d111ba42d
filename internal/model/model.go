// Package model содержит доменные сущности слоя представления записей и оплат E-mind.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownStatus возвращается для кода статуса записи, не входящего в закрытый набор.
var (
	ErrUnknownStatus = errors.New("unknown appointment status")
	// ErrUnknownRole возвращается для неизвестной роли пользователя.
	ErrUnknownRole = errors.New("unknown user role")
)

// AppointmentStatus описывает статус записи на консультацию.
type AppointmentStatus string

const (
	StatusPendingPayment  AppointmentStatus = "PENDING_PAYMENT"
	StatusPaymentUploaded AppointmentStatus = "PAYMENT_UPLOADED"
	StatusPaymentVerified AppointmentStatus = "PAYMENT_VERIFIED"
	StatusConfirmed       AppointmentStatus = "CONFIRMED"
	StatusCompleted       AppointmentStatus = "COMPLETED"
	StatusCancelled       AppointmentStatus = "CANCELLED"
	StatusNoShow          AppointmentStatus = "NO_SHOW"
)

// Statuses перечисляет все допустимые статусы в порядке жизненного цикла записи.
var Statuses = []AppointmentStatus{
	StatusPendingPayment,
	StatusPaymentUploaded,
	StatusPaymentVerified,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// ParseAppointmentStatus преобразует строку в статус записи.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// IsValid сообщает, входит ли статус в закрытый набор.
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPaymentUploaded, StatusPaymentVerified,
		StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal сообщает, является ли статус конечным.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Role описывает класс полномочий пользователя.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePsychologist Role = "psychologist"
	RoleClient       Role = "client"
)

// ParseRole преобразует строку в роль пользователя.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RolePsychologist, RoleClient:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// PaymentDetail описывает подтверждение оплаты, прикреплённое к записи.
type PaymentDetail struct {
	ID            int64   `json:"id"`
	Appointment   int64   `json:"appointment"`
	TransactionID *string `json:"transaction_id,omitempty"`
	PaymentDate   *string `json:"payment_date,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	Verified      *bool   `json:"verified,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// IsVerified сообщает, подтверждена ли оплата. Отсутствующий флаг считается неподтверждённым.
func (d *PaymentDetail) IsVerified() bool {
	return d != nil && d.Verified != nil && *d.Verified
}

// Appointment описывает запись клиента к психологу.
type Appointment struct {
	ID                 int64             `json:"id"`
	ClientName         string            `json:"client_name"`
	PsychologistName   string            `json:"psychologist_name"`
	Date               string            `json:"date"`
	StartTime          string            `json:"start_time"`
	EndTime            string            `json:"end_time"`
	Status             AppointmentStatus `json:"status"`
	StatusDisplay      string            `json:"status_display"`
	PaymentAmount      decimal.Decimal   `json:"payment_amount"`
	PaymentProof       *string           `json:"payment_proof,omitempty"`
	IsFirstAppointment *bool             `json:"is_first_appointment,omitempty"`
	PaymentDetail      *PaymentDetail    `json:"payment_detail,omitempty"`
}

// FirstAppointment сообщает, помечена ли запись как первая консультация.
func (a *Appointment) FirstAppointment() bool {
	return a.IsFirstAppointment != nil && *a.IsFirstAppointment
}

// TimeBlock описывает интервал доступности в формате HH:MM.
type TimeBlock struct {
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
}

// DaySchedule описывает доступность психолога в конкретный день недели.
type DaySchedule struct {
	Enabled    bool        `json:"enabled"`
	TimeBlocks []TimeBlock `json:"timeBlocks" validate:"dive"`
}

// WeeklyScheduleConfig сопоставляет ключ дня недели (monday…sunday) с расписанием на день.
type WeeklyScheduleConfig map[string]DaySchedule

// Verification описывает переданное в API решение о проверке оплаты.
type Verification struct {
	ID              int64     `json:"id"`
	AppointmentID   int64     `json:"appointment_id"`
	PaymentDetailID *int64    `json:"payment_detail_id,omitempty"`
	Role            Role      `json:"role"`
	UserID          string    `json:"user_id"`
	Verified        bool      `json:"verified"`
	Notes           string    `json:"notes"`
	Succeeded       bool      `json:"succeeded"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
