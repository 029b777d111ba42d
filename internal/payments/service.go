package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmeshcher/emind-bff/internal/model"
	"github.com/mmeshcher/emind-bff/internal/session"
)

// ErrUnsupportedRole возвращается для роли, которой недоступны операции с оплатами.
var (
	ErrUnsupportedRole = errors.New("role cannot access payments")
	// ErrMissingPaymentDetail возвращается, если у записи нет данных оплаты, а роль их требует.
	ErrMissingPaymentDetail = errors.New("appointment has no payment detail")
)

const (
	opPending = "pending_payments"
	opAll     = "all_payments"
	opVerify  = "verify_payment"
)

type roleEndpoints struct {
	role         model.Role
	pending      string
	all          string
	verify       func(a *model.Appointment) (string, error)
	notesField   string
	scopedToUser bool
}

func endpointsFor(role model.Role) (roleEndpoints, error) {
	switch role {
	case model.RoleAdmin:
		return roleEndpoints{
			role:    role,
			pending: "/api/payments/admin/pending-payments/",
			all:     "/api/payments/admin/all-payments/",
			verify: func(a *model.Appointment) (string, error) {
				return fmt.Sprintf("/api/payments/admin/verify-payment/%d/", a.ID), nil
			},
			notesField: "admin_notes",
		}, nil
	case model.RolePsychologist:
		return roleEndpoints{
			role:    role,
			pending: "/api/payments/psychologist/pending-payments/",
			all:     "/api/payments/psychologist/all-payments/",
			verify: func(a *model.Appointment) (string, error) {
				// Психолог подтверждает конкретную оплату, а не запись.
				if a.PaymentDetail == nil {
					return "", fmt.Errorf("%w: appointment %d", ErrMissingPaymentDetail, a.ID)
				}
				return fmt.Sprintf("/api/payments/psychologist/verify-payment/%d/", a.PaymentDetail.ID), nil
			},
			notesField:   "psychologist_notes",
			scopedToUser: true,
		}, nil
	}
	return roleEndpoints{}, fmt.Errorf("%w: %q", ErrUnsupportedRole, role)
}

// Service выполняет операции с оплатами от имени пользователя с заданной ролью.
// Сессия читается при каждом вызове.
type Service struct {
	client    *Client
	session   session.Accessor
	endpoints roleEndpoints
}

// NewService создаёт сервис оплат для роли. Роль client не поддерживается.
func NewService(c *Client, acc session.Accessor, role model.Role) (*Service, error) {
	ep, err := endpointsFor(role)
	if err != nil {
		return nil, err
	}
	return &Service{
		client:    c,
		session:   acc,
		endpoints: ep,
	}, nil
}

// Role возвращает роль, для которой создан сервис.
func (s *Service) Role() model.Role {
	return s.endpoints.role
}

// GetPendingPayments возвращает записи, ожидающие проверки оплаты.
func (s *Service) GetPendingPayments(ctx context.Context) ([]model.Appointment, error) {
	return s.list(ctx, opPending, s.endpoints.pending)
}

// GetAllPayments возвращает все записи с оплатами, доступные пользователю.
func (s *Service) GetAllPayments(ctx context.Context) ([]model.Appointment, error) {
	return s.list(ctx, opAll, s.endpoints.all)
}

func (s *Service) list(ctx context.Context, op, path string) ([]model.Appointment, error) {
	sess, err := s.session.Session(ctx)
	if err != nil {
		return nil, err
	}

	u := s.client.baseURL + path
	if s.endpoints.scopedToUser {
		u += "?" + url.Values{"user_id": {sess.UserID}}.Encode()
	}

	var res []model.Appointment
	if err := s.client.do(ctx, op, s.endpoints.role, http.MethodGet, u, sess.Token, nil, &res); err != nil {
		return nil, err
	}
	if res == nil {
		res = []model.Appointment{}
	}
	return res, nil
}

// VerifyPayment отправляет решение о проверке оплаты записи.
func (s *Service) VerifyPayment(ctx context.Context, a model.Appointment, verified bool, notes string) error {
	path, err := s.endpoints.verify(&a)
	if err != nil {
		return err
	}

	sess, err := s.session.Session(ctx)
	if err != nil {
		return err
	}

	body := map[string]any{
		"verified": verified,
		"user_id":  userIDValue(sess.UserID),
	}
	body[s.endpoints.notesField] = notes

	return s.client.do(ctx, opVerify, s.endpoints.role, http.MethodPost, s.client.baseURL+path, sess.Token, body, nil)
}

// userIDValue кодирует числовой идентификатор как число JSON, остальные как строку.
// Числом считается только каноническая запись: "007" и "+5" уходят строкой.
func userIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && strconv.FormatInt(n, 10) == id {
		return json.Number(id)
	}
	return id
}
