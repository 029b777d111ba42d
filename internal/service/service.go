// Package service собирает представления записей и оплат для интерфейса E-mind.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/emind-bff/internal/filter"
	"github.com/mmeshcher/emind-bff/internal/format"
	"github.com/mmeshcher/emind-bff/internal/metrics"
	"github.com/mmeshcher/emind-bff/internal/model"
	"github.com/mmeshcher/emind-bff/internal/payments"
	"github.com/mmeshcher/emind-bff/internal/schedule"
	"github.com/mmeshcher/emind-bff/internal/session"
	"github.com/mmeshcher/emind-bff/internal/status"
)

// ErrAppointmentNotFound возвращается, если запись отсутствует в списке оплат пользователя.
var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrAuditDisabled возвращается, если журнал подтверждений не настроен.
	ErrAuditDisabled = errors.New("verification audit is disabled")
)

// Payments описывает операции с оплатами для одной роли.
type Payments interface {
	GetPendingPayments(ctx context.Context) ([]model.Appointment, error)
	GetAllPayments(ctx context.Context) ([]model.Appointment, error)
	VerifyPayment(ctx context.Context, a model.Appointment, verified bool, notes string) error
}

// PaymentsFactory создаёт операции с оплатами для роли.
type PaymentsFactory func(role model.Role) (Payments, error)

// NewPaymentsFactory создаёт фабрику поверх клиента API и источника сессии.
func NewPaymentsFactory(c *payments.Client, acc session.Accessor) PaymentsFactory {
	return func(role model.Role) (Payments, error) {
		svc, err := payments.NewService(c, acc, role)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// AuditRepository описывает журнал подтверждений оплат.
type AuditRepository interface {
	Close() error
	RecordVerification(ctx context.Context, v model.Verification) (int64, error)
	ListVerifications(ctx context.Context, appointmentID int64) ([]model.Verification, error)
}

// Service содержит логику слоя представления.
type Service struct {
	payments PaymentsFactory
	session  session.Accessor
	audit    AuditRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithAudit включает журнал подтверждений.
func WithAudit(repo AuditRepository) Option {
	return func(s *Service) {
		s.audit = repo
	}
}

// WithMetrics задаёт метрики подтверждений.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер сервиса.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService создаёт сервис представлений.
func NewService(pf PaymentsFactory, acc session.Accessor, opts ...Option) *Service {
	s := &Service{
		payments: pf,
		session:  acc,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.audit != nil {
		return s.audit.Close()
	}
	return nil
}

// PaymentsView возвращает записи роли, отобранные фильтром.
func (s *Service) PaymentsView(ctx context.Context, role model.Role, f filter.Filter) ([]AppointmentView, error) {
	api, err := s.payments(role)
	if err != nil {
		return nil, err
	}

	all, err := api.GetAllPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all payments: %w", err)
	}

	return s.views(filter.Appointments(all, f, role)), nil
}

// PendingView возвращает список ожидающих проверки оплат, сформированный сервером.
func (s *Service) PendingView(ctx context.Context, role model.Role) ([]AppointmentView, error) {
	api, err := s.payments(role)
	if err != nil {
		return nil, err
	}

	pending, err := api.GetPendingPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pending payments: %w", err)
	}

	return s.views(pending), nil
}

// Verify находит запись среди оплат пользователя и отправляет решение о проверке.
// Результат записывается в журнал; ошибка журнала не влияет на ответ.
func (s *Service) Verify(ctx context.Context, role model.Role, appointmentID int64, verified bool, notes string) error {
	api, err := s.payments(role)
	if err != nil {
		return err
	}

	all, err := api.GetAllPayments(ctx)
	if err != nil {
		return fmt.Errorf("get all payments: %w", err)
	}

	var target *model.Appointment
	for i := range all {
		if all[i].ID == appointmentID {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %d", ErrAppointmentNotFound, appointmentID)
	}

	verifyErr := api.VerifyPayment(ctx, *target, verified, notes)
	s.metrics.ObserveVerification(string(role), verified, verifyErr == nil)
	s.record(ctx, role, target, verified, notes, verifyErr)

	if verifyErr != nil {
		return verifyErr
	}

	s.logger.Info("payment verification sent",
		zap.Int64("appointment", appointmentID),
		zap.String("role", string(role)),
		zap.Bool("verified", verified),
	)
	return nil
}

func (s *Service) record(ctx context.Context, role model.Role, a *model.Appointment, verified bool, notes string, verifyErr error) {
	if s.audit == nil {
		return
	}

	v := model.Verification{
		AppointmentID: a.ID,
		Role:          role,
		Verified:      verified,
		Notes:         notes,
		Succeeded:     verifyErr == nil,
	}
	if a.PaymentDetail != nil {
		id := a.PaymentDetail.ID
		v.PaymentDetailID = &id
	}
	if verifyErr != nil {
		v.Error = verifyErr.Error()
	}
	if sess, err := s.session.Session(ctx); err == nil {
		v.UserID = sess.UserID
	}

	if _, err := s.audit.RecordVerification(context.WithoutCancel(ctx), v); err != nil {
		s.logger.Error("record verification error", zap.Error(err), zap.Int64("appointment", a.ID))
	}
}

// Verifications возвращает журнал подтверждений записи.
func (s *Service) Verifications(ctx context.Context, role model.Role, appointmentID int64) ([]model.Verification, error) {
	if _, err := s.payments(role); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	return s.audit.ListVerifications(ctx, appointmentID)
}

// ScheduleView проверяет недельное расписание и возвращает его в порядке дней недели.
func (s *Service) ScheduleView(cfg model.WeeklyScheduleConfig) ([]schedule.Day, error) {
	if err := schedule.Validate(cfg); err != nil {
		return nil, err
	}
	return schedule.FormatSchedule(cfg), nil
}

// Statuses возвращает легенду статусов записей.
func (s *Service) Statuses() []status.Presentation {
	return status.All()
}

// AppointmentView описывает запись в виде, готовом к отображению.
type AppointmentView struct {
	ID               int64                   `json:"id"`
	ClientName       string                  `json:"client_name"`
	PsychologistName string                  `json:"psychologist_name"`
	Date             string                  `json:"date"`
	StartTime        string                  `json:"start_time"`
	EndTime          string                  `json:"end_time"`
	Status           model.AppointmentStatus `json:"status"`
	StatusDisplay    string                  `json:"status_display"`
	Presentation     status.Presentation     `json:"presentation"`
	Amount           string                  `json:"amount"`
	FirstAppointment bool                    `json:"first_appointment"`
	PaymentProof     *string                 `json:"payment_proof,omitempty"`
	Payment          *PaymentView            `json:"payment,omitempty"`
}

// PaymentView описывает данные оплаты записи.
type PaymentView struct {
	ID            int64  `json:"id"`
	Verified      bool   `json:"verified"`
	Method        string `json:"method,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Date          string `json:"date,omitempty"`
}

func (s *Service) views(appointments []model.Appointment) []AppointmentView {
	res := make([]AppointmentView, 0, len(appointments))
	for i := range appointments {
		res = append(res, s.view(&appointments[i]))
	}
	return res
}

func (s *Service) view(a *model.Appointment) AppointmentView {
	p, ok := status.For(a.Status)
	if !ok {
		s.logger.Warn("unknown appointment status",
			zap.Int64("appointment", a.ID),
			zap.String("status", string(a.Status)),
		)
	}

	v := AppointmentView{
		ID:               a.ID,
		ClientName:       a.ClientName,
		PsychologistName: a.PsychologistName,
		Date:             format.FormatDate(a.Date),
		StartTime:        format.FormatTime(a.StartTime),
		EndTime:          format.FormatTime(a.EndTime),
		Status:           a.Status,
		StatusDisplay:    a.StatusDisplay,
		Presentation:     p,
		Amount:           a.PaymentAmount.StringFixed(2),
		FirstAppointment: a.FirstAppointment(),
		PaymentProof:     a.PaymentProof,
	}

	if d := a.PaymentDetail; d != nil {
		v.Payment = &PaymentView{
			ID:            d.ID,
			Verified:      d.IsVerified(),
			Method:        deref(d.PaymentMethod),
			TransactionID: deref(d.TransactionID),
			Date:          format.FormatDate(deref(d.PaymentDate)),
		}
	}

	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
