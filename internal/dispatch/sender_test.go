package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

type capturedRequest struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers http.Header
	Body    map[string]any
}

func newCaptureServer(t *testing.T, status int, respond any, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = map[string]string{}
		for key := range r.URL.Query() {
			captured.Query[key] = r.URL.Query().Get(key)
		}
		captured.Headers = r.Header.Clone()
		captured.Body = nil
		if r.Body != nil {
			var decoded map[string]any
			if err := json.NewDecoder(r.Body).Decode(&decoded); err == nil {
				captured.Body = decoded
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if respond != nil {
			_ = json.NewEncoder(w).Encode(respond)
		}
	}))
}

func TestSendRESTPost(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{
		"trackingNumber": "TRK-100",
		"status":         "picked_up",
	}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code: "alpha",
		APIConfiguration: domain.APIConfiguration{
			URL:         srv.URL + "/orders",
			Transport:   domain.TransportRest,
			QueryParams: map[string]string{"channel": "web"},
			Headers:     map[string]string{"X-Store": "main"},
			Auth:        domain.APIAuth{Method: domain.AuthBearer, Token: "secret"},
		},
	}

	sender := NewSender(SenderConfig{})
	result, err := sender.Send(context.Background(), company, map[string]any{"reference": "1042"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("method = %s, want POST", captured.Method)
	}
	if captured.Query["channel"] != "web" {
		t.Fatalf("query = %v", captured.Query)
	}
	if got := captured.Headers.Get("Authorization"); got != "Bearer secret" {
		t.Fatalf("authorization = %q", got)
	}
	if got := captured.Headers.Get("X-Store"); got != "main" {
		t.Fatalf("custom header = %q", got)
	}
	if captured.Body["reference"] != "1042" {
		t.Fatalf("body = %v", captured.Body)
	}
	if result.TrackingNumber != "TRK-100" || result.ProviderStatus != "picked_up" {
		t.Fatalf("result = %#v", result)
	}
}

func TestSendRESTGetPutsPayloadInQuery(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{"tracking": "Q-1"}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code: "alpha",
		APIConfiguration: domain.APIConfiguration{
			URL:        srv.URL + "/create",
			HTTPMethod: "get",
			Auth:       domain.APIAuth{Method: domain.AuthAPIKey, APIKey: "k1"},
		},
	}

	sender := NewSender(SenderConfig{})
	result, err := sender.Send(context.Background(), company, map[string]any{"phone": "0770"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if captured.Method != http.MethodGet {
		t.Fatalf("method = %s, want GET", captured.Method)
	}
	if captured.Query["phone"] != "0770" {
		t.Fatalf("query = %v", captured.Query)
	}
	if got := captured.Headers.Get("x-api-key"); got != "k1" {
		t.Fatalf("api key header = %q", got)
	}
	if result.TrackingNumber != "Q-1" {
		t.Fatalf("result = %#v", result)
	}
}

func TestSendJSONRPCMergesParams(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"result":  map[string]any{"trackingNumber": "RPC-9", "status": "assigned"},
	}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code: "rpcco",
		APIConfiguration: domain.APIConfiguration{
			URL:       srv.URL + "/jsonrpc",
			Transport: "json-rpc",
			Method:    "create_order",
			Params:    map[string]string{"source": "shop"},
		},
		Credentials: domain.CompanyCredentials{
			Login:    "merchant",
			Password: "pw",
			Database: "prod",
		},
	}

	sender := NewSender(SenderConfig{})
	result, err := sender.Send(context.Background(), company, map[string]any{
		"reference": "1042",
		"login":     "attacker", // identity keys are never overridden by the payload
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if captured.Body["jsonrpc"] != "2.0" || captured.Body["method"] != "create_order" {
		t.Fatalf("envelope = %v", captured.Body)
	}
	params, ok := captured.Body["params"].(map[string]any)
	if !ok {
		t.Fatalf("params missing: %v", captured.Body)
	}
	if params["login"] != "merchant" || params["password"] != "pw" || params["db"] != "prod" {
		t.Fatalf("credentials not merged: %v", params)
	}
	if params["source"] != "shop" || params["reference"] != "1042" {
		t.Fatalf("params = %v", params)
	}
	if result.TrackingNumber != "RPC-9" || result.Adapter != "jsonrpc" {
		t.Fatalf("result = %#v", result)
	}
}

func TestSendJSONRPCOmitMethod(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{"result": "T-1"}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code: "rpcco",
		APIConfiguration: domain.APIConfiguration{
			URL:        srv.URL + "/jsonrpc",
			Method:     "create_order",
			OmitMethod: true,
		},
	}

	sender := NewSender(SenderConfig{})
	if _, err := sender.Send(context.Background(), company, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := captured.Body["method"]; ok {
		t.Fatalf("method must be omitted: %v", captured.Body)
	}
}

func TestSendMethodAsURL(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{"result": "T-2"}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code: "rpcco",
		APIConfiguration: domain.APIConfiguration{
			URL:    srv.URL + "/ignored",
			Method: srv.URL + "/rpc/create_order",
		},
	}

	sender := NewSender(SenderConfig{})
	if _, err := sender.Send(context.Background(), company, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if captured.Path != "/rpc" {
		t.Fatalf("path = %q, want /rpc", captured.Path)
	}
	if captured.Body["method"] != "create_order" {
		t.Fatalf("method = %v", captured.Body["method"])
	}
}

func TestSendNon2xxReturnsProviderError(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusBadGateway, map[string]any{"error": "down"}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code:             "alpha",
		APIConfiguration: domain.APIConfiguration{URL: srv.URL},
	}

	sender := NewSender(SenderConfig{})
	_, err := sender.Send(context.Background(), company, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("error %T is not a ProviderError", err)
	}
	if pe.StatusCode != http.StatusBadGateway || !pe.IsUpstreamFault() {
		t.Fatalf("provider error = %#v", pe)
	}
}

func TestSendDefaultsStatusToAssigned(t *testing.T) {
	var captured capturedRequest
	srv := newCaptureServer(t, http.StatusOK, map[string]any{"trackingNumber": "T-3"}, &captured)
	defer srv.Close()

	company := &domain.DeliveryCompany{
		Code:             "alpha",
		APIConfiguration: domain.APIConfiguration{URL: srv.URL},
	}

	sender := NewSender(SenderConfig{})
	result, err := sender.Send(context.Background(), company, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.ProviderStatus != string(domain.DeliveryStatusAssigned) {
		t.Fatalf("status = %q, want assigned default", result.ProviderStatus)
	}
}

func TestSendRejectsBadURL(t *testing.T) {
	company := &domain.DeliveryCompany{
		Code:             "alpha",
		APIConfiguration: domain.APIConfiguration{URL: "not-a-url"},
	}
	sender := NewSender(SenderConfig{})
	if _, err := sender.Send(context.Background(), company, nil); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSanitizeHeaders(t *testing.T) {
	headers := map[string]string{
		"X-Good":      "value",
		"$where":      "drop-me",
		"X-Injection": "evil\r\nX-Smuggled: yes",
		"X-Template":  "$__token__",
		"  ":          "empty-name",
		"X-Empty":     "  ",
	}

	clean := SanitizeHeaders(headers)
	if len(clean) != 1 || clean["X-Good"] != "value" {
		t.Fatalf("sanitized = %#v", clean)
	}
	if SanitizeHeaders(nil) != nil {
		t.Fatal("nil headers must stay nil")
	}
}
