package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/dispatch"
	"github.com/itszainshop-byte/zain/internal/services"
)

func deliveryRouter(svc services.DeliveryService) chi.Router {
	r := chi.NewRouter()
	NewDeliveryHandlers(svc).Routes(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestSendOrderEndpoint(t *testing.T) {
	svc := &stubDeliveryService{
		sendFn: func(_ context.Context, cmd services.SendOrderCommand) (services.SendOrderResult, error) {
			if cmd.OrderID != "ord_1" || cmd.CompanyCode != "alpha" {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			return services.SendOrderResult{
				Order:          domain.Order{ID: "ord_1", OrderNumber: "1042"},
				Company:        services.CompanyRef{ID: "cmp_1", Code: "alpha", Name: "Alpha"},
				TrackingNumber: "TRK-1",
				DeliveryStatus: domain.DeliveryStatusAssigned,
			}, nil
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/send", `{"order_id":"ord_1","company_code":"alpha"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["tracking_number"] != "TRK-1" || body["delivery_status"] != "assigned" {
		t.Fatalf("body = %v", body)
	}
}

func TestSendOrderEndpointRequiresOrderID(t *testing.T) {
	router := deliveryRouter(&stubDeliveryService{})

	rr := doJSON(t, router, http.MethodPost, "/send", `{"company_code":"alpha"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "invalid_request" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestSendOrderEndpointOrderNotFound(t *testing.T) {
	svc := &stubDeliveryService{
		sendFn: func(context.Context, services.SendOrderCommand) (services.SendOrderResult, error) {
			return services.SendOrderResult{}, services.ErrOrderNotFound
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/send", `{"order_id":"ord_x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "order_not_found" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestSendOrderEndpointConfigInvalid(t *testing.T) {
	svc := &stubDeliveryService{
		sendFn: func(context.Context, services.SendOrderCommand) (services.SendOrderResult, error) {
			return services.SendOrderResult{}, &services.ConfigValidationError{
				Company: services.CompanyRef{Code: "alpha"},
				Report:  dispatch.ConfigReport{Issues: []string{"api url is missing"}},
			}
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/send", `{"order_id":"ord_1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "config_invalid" {
		t.Fatalf("body = %v", body)
	}
	issues, ok := body["issues"].([]any)
	if !ok || len(issues) != 1 {
		t.Fatalf("issues = %v", body["issues"])
	}
}

func TestSendOrderEndpointMappingMissing(t *testing.T) {
	svc := &stubDeliveryService{
		sendFn: func(context.Context, services.SendOrderCommand) (services.SendOrderResult, error) {
			return services.SendOrderResult{}, &services.MappingValidationError{
				Company: services.CompanyRef{Code: "alpha"},
				Report: dispatch.MappingReport{
					Missing: []string{"customer.phone"},
					Payload: map[string]any{"client_name": "Huda Salem"},
				},
			}
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/send", `{"order_id":"ord_1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "mapping_missing" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["payload_preview"]; !ok {
		t.Fatalf("payload_preview missing: %v", body)
	}
}

func TestSendOrderEndpointProviderError(t *testing.T) {
	svc := &stubDeliveryService{
		sendFn: func(context.Context, services.SendOrderCommand) (services.SendOrderResult, error) {
			return services.SendOrderResult{}, fmt.Errorf("%w: %w", services.ErrProviderFailure, &dispatch.ProviderError{StatusCode: 503, Body: "down"})
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/send", `{"order_id":"ord_1"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "provider_error" {
		t.Fatalf("body = %v", body)
	}
	if body["provider_status"] != float64(503) {
		t.Fatalf("provider_status = %v", body["provider_status"])
	}
}

func TestBatchSendEndpoint(t *testing.T) {
	svc := &stubDeliveryService{
		batchSendFn: func(_ context.Context, cmd services.BatchSendCommand) (services.BatchSendResult, error) {
			return services.BatchSendResult{
				Total:     2,
				Succeeded: 1,
				Failed:    1,
				Company:   services.CompanyRef{ID: "cmp_1", Code: "alpha", Name: "Alpha"},
				Results: []services.BatchSendEntry{
					{OrderID: "ord_1", OK: true, TrackingNumber: "T-1"},
					{OrderID: "ord_2", Error: "Order not found"},
				},
			}, nil
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodPost, "/batch-send", `{"order_ids":["ord_1","ord_2"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["total"] != float64(2) || body["succeeded"] != float64(1) || body["failed"] != float64(1) {
		t.Fatalf("body = %v", body)
	}
	company, ok := body["company"].(map[string]any)
	if !ok || company["code"] != "alpha" {
		t.Fatalf("company = %v", body["company"])
	}
}

func TestDeliveryStatusEndpoint(t *testing.T) {
	svc := &stubDeliveryService{
		statusFn: func(_ context.Context, orderID string) (services.DeliveryStatusResult, error) {
			if orderID != "ord_1" {
				return services.DeliveryStatusResult{}, services.ErrOrderNotFound
			}
			return services.DeliveryStatusResult{
				OrderID:        "ord_1",
				DeliveryStatus: domain.DeliveryStatusInTransit,
				TrackingNumber: "TRK-1",
			}, nil
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodGet, "/status/ord_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["delivery_status"] != "in_transit" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestDeliveryStatusEndpointNotAssigned(t *testing.T) {
	svc := &stubDeliveryService{
		statusFn: func(context.Context, string) (services.DeliveryStatusResult, error) {
			return services.DeliveryStatusResult{}, services.ErrOrderNotAssigned
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodGet, "/status/ord_1", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "order_not_assigned" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestValidateConfigEndpointRedactsPassword(t *testing.T) {
	svc := &stubDeliveryService{
		validateCfgFn: func(_ context.Context, companyID string) (services.ConfigValidationResult, error) {
			return services.ConfigValidationResult{
				Company: services.CompanyRef{ID: companyID, Code: "alpha"},
				Report:  dispatch.ConfigReport{OK: true, Issues: []string{}, Mode: domain.TransportJSONRPC},
				Params: []dispatch.ParamResolution{
					{Name: "db", Value: "prod", Source: dispatch.ParamSourceCredentials},
					{Name: "password", Value: "hunter2", Source: dispatch.ParamSourceCredentials},
				},
			}, nil
		},
	}
	router := deliveryRouter(svc)

	rr := doJSON(t, router, http.MethodGet, "/validate-config/cmp_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "hunter2") {
		t.Fatalf("password value leaked: %s", rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["mode"] != "jsonrpc" || body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestProxyEndpointRequiresURL(t *testing.T) {
	router := deliveryRouter(&stubDeliveryService{})

	rr := doJSON(t, router, http.MethodPost, "/proxy-list", `{"params":{}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
