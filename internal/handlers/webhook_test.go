package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/services"
)

func webhookRouter(svc services.DeliveryService, token string) chi.Router {
	r := chi.NewRouter()
	NewWebhookHandlers(svc, token).Routes(r)
	return r
}

func postWebhook(t *testing.T, router chi.Router, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/delivery", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookUnconfiguredToken(t *testing.T) {
	svc := &stubDeliveryService{}
	router := webhookRouter(svc, "")

	rr := postWebhook(t, router, "whatever", `{"status":"delivered","order_id":"ord_1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "webhook_not_configured" {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if svc.webhookApplied != 0 {
		t.Fatal("webhook must not reach the service")
	}
}

func TestWebhookInvalidToken(t *testing.T) {
	svc := &stubDeliveryService{}
	router := webhookRouter(svc, "secret-token")

	for name, token := range map[string]string{"wrong": "other-token", "absent": ""} {
		rr := postWebhook(t, router, token, `{"status":"delivered","order_id":"ord_1"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s token: status = %d", name, rr.Code)
		}
		if decodeBody(t, rr)["error"] != "invalid_token" {
			t.Fatalf("%s token: body = %s", name, rr.Body.String())
		}
	}
	if svc.webhookApplied != 0 {
		t.Fatal("webhook must not reach the service")
	}
}

func TestWebhookAppliesStatus(t *testing.T) {
	var captured services.WebhookCommand
	svc := &stubDeliveryService{
		applyWebhookFn: func(_ context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
			captured = cmd
			return services.WebhookResult{
				OrderID:        "ord_1",
				OrderNumber:    "1042",
				PreviousStatus: domain.DeliveryStatusInTransit,
				DeliveryStatus: domain.DeliveryStatusDelivered,
				TrackingNumber: "TRK-1",
			}, nil
		},
	}
	router := webhookRouter(svc, "secret-token")

	rr := postWebhook(t, router, "secret-token", `{
		"trackingNumber": "TRK-1",
		"status": "Delivered",
		"occurred_at": "2026-06-01T10:00:00Z",
		"notes": "left at door"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	if captured.TrackingNumber != "TRK-1" || captured.Status != "Delivered" || captured.Notes != "left at door" {
		t.Fatalf("command = %+v", captured)
	}
	if captured.OccurredAt == nil || !captured.OccurredAt.Equal(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("occurredAt = %v", captured.OccurredAt)
	}

	body := decodeBody(t, rr)
	if body["delivery_status"] != "delivered" || body["previous_status"] != "in_transit" {
		t.Fatalf("body = %v", body)
	}
}

func TestWebhookAcceptsSnakeCaseAliases(t *testing.T) {
	var captured services.WebhookCommand
	svc := &stubDeliveryService{
		applyWebhookFn: func(_ context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
			captured = cmd
			return services.WebhookResult{OrderID: cmd.OrderID}, nil
		},
	}
	router := webhookRouter(svc, "secret-token")

	rr := postWebhook(t, router, "secret-token", `{
		"order_number": "1042",
		"company_code": "alpha",
		"delivery_status": "in_transit"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderNumber != "1042" || captured.CompanyCode != "alpha" || captured.Status != "in_transit" {
		t.Fatalf("command = %+v", captured)
	}
}

func TestWebhookAcceptsProviderStatusAlias(t *testing.T) {
	var captured services.WebhookCommand
	svc := &stubDeliveryService{
		applyWebhookFn: func(_ context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
			captured = cmd
			return services.WebhookResult{OrderNumber: cmd.OrderNumber}, nil
		},
	}
	router := webhookRouter(svc, "secret-token")

	rr := postWebhook(t, router, "secret-token", `{"orderNumber":"ORD123","providerStatus":"delivered"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderNumber != "ORD123" || captured.Status != "delivered" {
		t.Fatalf("command = %+v", captured)
	}

	rr = postWebhook(t, router, "secret-token", `{"order_number":"ORD123","provider_status":"returned"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("snake_case status = %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != "returned" {
		t.Fatalf("command = %+v", captured)
	}
}

func TestWebhookRequiresStatusAndIdentifier(t *testing.T) {
	router := webhookRouter(&stubDeliveryService{}, "secret-token")

	rr := postWebhook(t, router, "secret-token", `{"order_id":"ord_1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing status: %d", rr.Code)
	}

	rr = postWebhook(t, router, "secret-token", `{"status":"delivered"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing identifier: %d", rr.Code)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	svc := &stubDeliveryService{
		applyWebhookFn: func(context.Context, services.WebhookCommand) (services.WebhookResult, error) {
			return services.WebhookResult{}, services.ErrOrderNotFound
		},
	}
	router := webhookRouter(svc, "secret-token")

	rr := postWebhook(t, router, "secret-token", `{"status":"delivered","tracking_number":"NOPE"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "order_not_found" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}
