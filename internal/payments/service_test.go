package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmeshcher/emind-bff/internal/metrics"
	"github.com/mmeshcher/emind-bff/internal/model"
	"github.com/mmeshcher/emind-bff/internal/session"
)

// countingSession считает обращения, чтобы проверить чтение сессии на каждом вызове.
type countingSession struct {
	calls int
	sess  session.Session
}

func (c *countingSession) Session(context.Context) (session.Session, error) {
	c.calls++
	return c.sess, nil
}

func newTestService(t *testing.T, baseURL string, role model.Role, acc session.Accessor) *Service {
	t.Helper()

	svc, err := NewService(NewClient(baseURL, WithMetrics(metrics.New(prometheus.NewRegistry()))), acc, role)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGetPendingPayments_Admin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/payments/admin/pending-payments/" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Fatalf("admin request must not carry a query, got %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("Authorization = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id": 1, "status": "PAYMENT_UPLOADED", "payment_amount": "120.00"}]`)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "5"})

	res, err := svc.GetPendingPayments(testContext(t))
	if err != nil {
		t.Fatalf("GetPendingPayments error: %v", err)
	}
	if len(res) != 1 || res[0].ID != 1 || res[0].Status != model.StatusPaymentUploaded {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res[0].PaymentAmount.String() != "120" {
		t.Fatalf("amount = %s, want 120", res[0].PaymentAmount)
	}
}

func TestGetAllPayments_PsychologistScopedToUser(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payments/psychologist/all-payments/" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "42" {
			t.Fatalf("user_id = %q, want 42", got)
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer ts.Close()

	acc := &countingSession{sess: session.Session{Token: "tok", UserID: "42"}}
	svc := newTestService(t, ts.URL, model.RolePsychologist, acc)

	for i := 0; i < 2; i++ {
		res, err := svc.GetAllPayments(testContext(t))
		if err != nil {
			t.Fatalf("GetAllPayments error: %v", err)
		}
		if res == nil || len(res) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", res)
		}
	}

	if acc.calls != 2 {
		t.Fatalf("session read %d times, want 2", acc.calls)
	}
}

func TestGetAllPayments_NullBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	res, err := svc.GetAllPayments(testContext(t))
	if err != nil {
		t.Fatalf("GetAllPayments error: %v", err)
	}
	if res == nil {
		t.Fatalf("expected non-nil slice")
	}
}

func TestGetPendingPayments_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail": "No tiene permiso para realizar esta acción."}`)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	_, err := svc.GetPendingPayments(testContext(t))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", statusErr.StatusCode)
	}
	if statusErr.Message != "No tiene permiso para realizar esta acción." {
		t.Fatalf("message = %q", statusErr.Message)
	}
}

func TestGetPendingPayments_PlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	_, err := svc.GetPendingPayments(testContext(t))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "upstream exploded" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetPendingPayments_MalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a list"`)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	_, err := svc.GetPendingPayments(testContext(t))
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestGetPendingPayments_NoSession(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", model.RoleAdmin, session.Static{})

	_, err := svc.GetPendingPayments(testContext(t))
	if !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestGetPendingPayments_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetPendingPayments(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type verifyCapture struct {
	path string
	body map[string]any
}

func verifyServer(t *testing.T, capture *verifyCapture) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q", ct)
		}
		capture.path = r.URL.Path
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&capture.body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"message": "ok"}`)
	}))
}

func TestVerifyPayment_Admin(t *testing.T) {
	var capture verifyCapture
	ts := verifyServer(t, &capture)
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "5"})

	appt := model.Appointment{ID: 11, PaymentDetail: &model.PaymentDetail{ID: 99}}
	if err := svc.VerifyPayment(testContext(t), appt, true, "ok"); err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}

	if capture.path != "/api/payments/admin/verify-payment/11/" {
		t.Fatalf("path = %s", capture.path)
	}
	if capture.body["verified"] != true || capture.body["admin_notes"] != "ok" {
		t.Fatalf("unexpected body: %v", capture.body)
	}
	if _, ok := capture.body["psychologist_notes"]; ok {
		t.Fatalf("admin body must not carry psychologist_notes: %v", capture.body)
	}
	if capture.body["user_id"] != json.Number("5") {
		t.Fatalf("user_id = %#v, want number 5", capture.body["user_id"])
	}
}

func TestVerifyPayment_UserIDEncoding(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   any
	}{
		{name: "canonical number", userID: "42", want: json.Number("42")},
		{name: "negative number", userID: "-3", want: json.Number("-3")},
		{name: "leading zero", userID: "007", want: "007"},
		{name: "plus sign", userID: "+5", want: "+5"},
		{name: "uuid", userID: "c0ffee00-0000-4000-8000-000000000001", want: "c0ffee00-0000-4000-8000-000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capture verifyCapture
			ts := verifyServer(t, &capture)
			defer ts.Close()

			svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: tt.userID})

			appt := model.Appointment{ID: 11}
			if err := svc.VerifyPayment(testContext(t), appt, true, ""); err != nil {
				t.Fatalf("VerifyPayment error: %v", err)
			}
			if capture.path == "" {
				t.Fatal("request was not sent")
			}
			if capture.body["user_id"] != tt.want {
				t.Fatalf("user_id = %#v, want %#v", capture.body["user_id"], tt.want)
			}
		})
	}
}

func TestVerifyPayment_PsychologistTargetsPaymentDetail(t *testing.T) {
	var capture verifyCapture
	ts := verifyServer(t, &capture)
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RolePsychologist, session.Static{Token: "tok", UserID: "u-8"})

	appt := model.Appointment{ID: 11, PaymentDetail: &model.PaymentDetail{ID: 99}}
	if err := svc.VerifyPayment(testContext(t), appt, false, "comprobante ilegible"); err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}

	if capture.path != "/api/payments/psychologist/verify-payment/99/" {
		t.Fatalf("path = %s, want payment detail id in path", capture.path)
	}
	if capture.body["verified"] != false || capture.body["psychologist_notes"] != "comprobante ilegible" {
		t.Fatalf("unexpected body: %v", capture.body)
	}
	if capture.body["user_id"] != "u-8" {
		t.Fatalf("user_id = %#v, want string u-8", capture.body["user_id"])
	}
}

func TestVerifyPayment_PsychologistWithoutPaymentDetail(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RolePsychologist, session.Static{Token: "tok", UserID: "1"})

	err := svc.VerifyPayment(testContext(t), model.Appointment{ID: 11}, true, "")
	if !errors.Is(err, ErrMissingPaymentDetail) {
		t.Fatalf("expected ErrMissingPaymentDetail, got %v", err)
	}
	if called {
		t.Fatalf("no request must be sent without a payment detail")
	}
}

func TestVerifyPayment_PropagatesStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": "Pago no encontrado"}`)
	}))
	defer ts.Close()

	svc := newTestService(t, ts.URL, model.RoleAdmin, session.Static{Token: "tok", UserID: "1"})

	err := svc.VerifyPayment(testContext(t), model.Appointment{ID: 3}, true, "")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound || statusErr.Message != "Pago no encontrado" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewService_ClientRoleUnsupported(t *testing.T) {
	_, err := NewService(NewClient("http://example"), session.Static{}, model.RoleClient)
	if !errors.Is(err, ErrUnsupportedRole) {
		t.Fatalf("expected ErrUnsupportedRole, got %v", err)
	}
}

func TestNewClient_NormalizesBaseURL(t *testing.T) {
	c := NewClient("api.emind.local:8000/")
	if c.baseURL != "http://api.emind.local:8000" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
