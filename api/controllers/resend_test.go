package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
)

type fakeResendService struct {
	queued  bool
	err     error
	calls   int
	orderID string
	email   string
}

func (f *fakeResendService) ResendSerial(_ context.Context, orderID, email string) (bool, error) {
	f.calls++
	f.orderID = orderID
	f.email = email
	return f.queued, f.err
}

func TestResendSerial_GenericMessage(t *testing.T) {
	svc := &fakeResendService{queued: true}
	handler := ResendSerial(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/resend-serial", strings.NewReader(`{"orderId":"cs_test_1","email":"buyer@example.com"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok true, got %v", body["ok"])
	}
	if body["message"] != ResendMessage {
		t.Fatalf("unexpected message %q", body["message"])
	}
	if body["emailQueued"] != true {
		t.Fatalf("expected emailQueued true, got %v", body["emailQueued"])
	}
	if svc.orderID != "cs_test_1" || svc.email != "buyer@example.com" {
		t.Fatalf("unexpected service input %q %q", svc.orderID, svc.email)
	}
}

func TestResendSerial_MissBodyMatchesSuccessShape(t *testing.T) {
	// Unknown orders must not be distinguishable from known ones by the
	// response message.
	svc := &fakeResendService{queued: false}
	handler := ResendSerial(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/resend-serial", strings.NewReader(`{"orderId":"cs_missing","email":"buyer@example.com"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	want := `{"ok":true,"message":"` + ResendMessage + `"}` + "\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestResendSerial_MissingFields(t *testing.T) {
	svc := &fakeResendService{}
	handler := ResendSerial(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/resend-serial", strings.NewReader(`{"orderId":"cs_test_1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called on invalid input")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["ok"] != false {
		t.Fatalf("expected ok false, got %v", body["ok"])
	}
}

func TestResendSerial_ServiceError(t *testing.T) {
	svc := &fakeResendService{err: pkgerrors.New(pkgerrors.CodeUpstream, "ledger unavailable")}
	handler := ResendSerial(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/resend-serial", strings.NewReader(`{"orderId":"cs_test_1","email":"buyer@example.com"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestResendSerial_NilService(t *testing.T) {
	handler := ResendSerial(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/resend-serial", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
