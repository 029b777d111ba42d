// Package handler содержит HTTP-обработчики BFF-сервиса E-mind.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/emind-bff/internal/filter"
	"github.com/mmeshcher/emind-bff/internal/middleware"
	"github.com/mmeshcher/emind-bff/internal/model"
	"github.com/mmeshcher/emind-bff/internal/payments"
	"github.com/mmeshcher/emind-bff/internal/schedule"
	"github.com/mmeshcher/emind-bff/internal/service"
	"github.com/mmeshcher/emind-bff/internal/session"
	"github.com/mmeshcher/emind-bff/internal/status"
	"github.com/mmeshcher/emind-bff/internal/validation"
)

// Service определяет контракт логики представлений, используемой HTTP-обработчиками.
type Service interface {
	PaymentsView(ctx context.Context, role model.Role, f filter.Filter) ([]service.AppointmentView, error)
	PendingView(ctx context.Context, role model.Role) ([]service.AppointmentView, error)
	Verify(ctx context.Context, role model.Role, appointmentID int64, verified bool, notes string) error
	Verifications(ctx context.Context, role model.Role, appointmentID int64) ([]model.Verification, error)
	ScheduleView(cfg model.WeeklyScheduleConfig) ([]schedule.Day, error)
	Statuses() []status.Presentation
}

// Handler реализует HTTP-обработчики BFF.
type Handler struct {
	service          Service
	logger           *zap.Logger
	sessions         *middleware.SessionMiddleware
	validate         *validator.Validate
	gatherer         prometheus.Gatherer
	carouselInterval time.Duration
	upgrader         websocket.Upgrader
}

// Option настраивает Handler.
type Option func(*Handler)

// WithGatherer задаёт источник метрик для /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithCarouselInterval задаёт интервал автопрокрутки карусели.
func WithCarouselInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.carouselInterval = d
		}
	}
}

// WithAllowedOrigins задаёт источники, с которых разрешено открывать websocket карусели.
// Без списка принимаются только запросы с того же хоста, "*" разрешает любой источник.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = checkOrigin(origins)
	}
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:          s,
		logger:           logger,
		sessions:         sessions,
		validate:         validation.New(),
		gatherer:         prometheus.DefaultGatherer,
		carouselInterval: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetPayments возвращает записи роли, отобранные фильтром ?filter=pending|verified|all.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := filter.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views, err := h.service.PaymentsView(r.Context(), role, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, views)
}

// GetPendingPayments возвращает список ожидающих проверки оплат, сформированный API.
func (h *Handler) GetPendingPayments(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views, err := h.service.PendingView(r.Context(), role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, views)
}

type verifyRequest struct {
	Verified *bool  `json:"verified" validate:"required"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// VerifyPayment передаёт решение о проверке оплаты записи.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "invalid request body",
			Fields: validation.FormatErrors(err),
		})
		return
	}

	if err := h.service.Verify(r.Context(), role, id, *req.Verified, req.Notes); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetVerifications возвращает журнал подтверждений записи.
func (h *Handler) GetVerifications(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.Verifications(r.Context(), role, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// FormatSchedule проверяет недельное расписание и возвращает его для отображения.
func (h *Handler) FormatSchedule(w http.ResponseWriter, r *http.Request) {
	var cfg model.WeeklyScheduleConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	days, err := h.service.ScheduleView(cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, days)
}

// GetStatuses возвращает легенду статусов записей.
func (h *Handler) GetStatuses(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Statuses())
}

// Healthz сообщает, что процесс жив.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid appointment id"})
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError переводит ошибку в HTTP-статус и тело {"error": "..."}.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		se *payments.StatusError
		ve *schedule.ValidationError
	)

	switch {
	case errors.As(err, &se):
		code := http.StatusBadGateway
		switch se.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			code = se.StatusCode
		default:
			h.logger.Error("upstream error", zap.Error(err), zap.String("path", r.URL.Path))
		}
		h.writeJSON(w, code, errorResponse{Error: se.Message})
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid schedule", Fields: ve.Fields})
	case errors.Is(err, model.ErrUnknownRole),
		errors.Is(err, payments.ErrUnsupportedRole),
		errors.Is(err, filter.ErrUnknownFilter):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNoUserID):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrAppointmentNotFound), errors.Is(err, service.ErrAuditDisabled):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, payments.ErrMissingPaymentDetail):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "upstream timeout"})
	default:
		h.logger.Error("request error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream request failed"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
