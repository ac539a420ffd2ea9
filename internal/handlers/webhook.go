package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itszainshop-byte/zain/internal/platform/httpx"
	"github.com/itszainshop-byte/zain/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// WebhookHandlers ingests provider status callbacks. Authentication is a
// static bearer token configured at deploy time; providers do not sign their
// payloads.
type WebhookHandlers struct {
	delivery services.DeliveryService
	token    string
}

// NewWebhookHandlers constructs webhook handlers guarded by the given token.
func NewWebhookHandlers(delivery services.DeliveryService, token string) *WebhookHandlers {
	return &WebhookHandlers{
		delivery: delivery,
		token:    strings.TrimSpace(token),
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/delivery", h.deliveryStatus)
}

type webhookResponse struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number,omitempty"`
	PreviousStatus string `json:"previous_status"`
	DeliveryStatus string `json:"delivery_status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

func (h *WebhookHandlers) deliveryStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_not_configured", "webhook token is not configured", http.StatusInternalServerError))
		return
	}
	if !h.authorized(r) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "invalid webhook token", http.StatusUnauthorized))
		return
	}
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd, err := parseWebhookPayload(raw)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.delivery.ApplyStatusWebhook(ctx, cmd)
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookResponse{
		OrderID:        result.OrderID,
		OrderNumber:    result.OrderNumber,
		PreviousStatus: string(result.PreviousStatus),
		DeliveryStatus: string(result.DeliveryStatus),
		TrackingNumber: result.TrackingNumber,
	})
}

func (h *WebhookHandlers) authorized(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	value = strings.TrimSpace(value)
	return subtle.ConstantTimeCompare([]byte(value), []byte(h.token)) == 1
}

// parseWebhookPayload normalises the loose provider payloads: snake_case and
// camelCase spellings are accepted for every field.
func parseWebhookPayload(raw map[string]any) (services.WebhookCommand, error) {
	cmd := services.WebhookCommand{
		OrderID:        pickString(raw, "order_id", "orderId"),
		OrderNumber:    pickString(raw, "order_number", "orderNumber"),
		TrackingNumber: pickString(raw, "tracking_number", "trackingNumber", "tracking"),
		CompanyID:      pickString(raw, "company_id", "companyId"),
		CompanyCode:    pickString(raw, "company_code", "companyCode", "company"),
		Status:         pickString(raw, "status", "delivery_status", "deliveryStatus", "provider_status", "providerStatus"),
		Notes:          pickString(raw, "notes", "note", "comment"),
		OrderStatus:    pickString(raw, "order_status", "orderStatus"),
	}

	if cmd.Status == "" {
		return services.WebhookCommand{}, fmt.Errorf("status is required")
	}
	if cmd.OrderID == "" && cmd.OrderNumber == "" && cmd.TrackingNumber == "" {
		return services.WebhookCommand{}, fmt.Errorf("one of order_id, order_number, tracking_number is required")
	}

	var err error
	if cmd.EstimatedDate, err = pickTime(raw, "estimated_date", "estimatedDate"); err != nil {
		return services.WebhookCommand{}, err
	}
	if cmd.ActualDate, err = pickTime(raw, "actual_date", "actualDate"); err != nil {
		return services.WebhookCommand{}, err
	}
	if cmd.OccurredAt, err = pickTime(raw, "occurred_at", "occurredAt", "timestamp"); err != nil {
		return services.WebhookCommand{}, err
	}
	return cmd, nil
}

func pickString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			// Providers occasionally send numeric order numbers.
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func pickTime(raw map[string]any, keys ...string) (*time.Time, error) {
	value := pickString(raw, keys...)
	if value == "" {
		return nil, nil
	}
	ts, err := parseTimeParam(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid RFC3339 timestamp", keys[0])
	}
	return &ts, nil
}
