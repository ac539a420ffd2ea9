package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/itszainshop-byte/zain/internal/dispatch"
	"github.com/itszainshop-byte/zain/internal/platform/httpx"
	"github.com/itszainshop-byte/zain/internal/services"
)

const maxDeliveryBodySize = 64 * 1024

// DeliveryHandlers exposes the dispatch endpoints: sending orders to delivery
// companies, batch operations, status lookups, and validator previews.
type DeliveryHandlers struct {
	delivery services.DeliveryService
}

// NewDeliveryHandlers constructs a new DeliveryHandlers instance.
func NewDeliveryHandlers(delivery services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{delivery: delivery}
}

// Routes registers the /delivery endpoints.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/send", h.sendOrder)
	r.Post("/batch-send", h.batchSend)
	r.Post("/batch-assign", h.batchAssign)
	r.Get("/status/{orderID}", h.deliveryStatus)
	r.Post("/validate-mappings", h.validateMappings)
	r.Post("/validate-mappings/all", h.validateMappingsAll)
	r.Get("/validate-config/{companyID}", h.validateConfig)
	r.Post("/proxy-list", h.proxyList)
}

type sendOrderRequest struct {
	OrderID     string   `json:"order_id"`
	CompanyID   string   `json:"company_id"`
	CompanyCode string   `json:"company_code"`
	DeliveryFee *float64 `json:"delivery_fee"`
	Notes       string   `json:"notes"`
}

type companyRefPayload struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type sendOrderResponse struct {
	OrderID        string            `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	Company        companyRefPayload `json:"company"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	DeliveryStatus string            `json:"delivery_status"`
	Response       map[string]any    `json:"response,omitempty"`
}

func (h *DeliveryHandlers) sendOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req sendOrderRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.SendOrder(ctx, services.SendOrderCommand{
		OrderID:     req.OrderID,
		CompanyID:   req.CompanyID,
		CompanyCode: req.CompanyCode,
		DeliveryFee: req.DeliveryFee,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sendOrderResponse{
		OrderID:        result.Order.ID,
		OrderNumber:    result.Order.OrderNumber,
		Company:        buildCompanyRef(result.Company),
		TrackingNumber: result.TrackingNumber,
		DeliveryStatus: string(result.DeliveryStatus),
		Response:       result.Response,
	})
}

type batchSendRequest struct {
	OrderIDs    []string `json:"order_ids"`
	CompanyID   string   `json:"company_id"`
	CompanyCode string   `json:"company_code"`
	DeliveryFee *float64 `json:"delivery_fee"`
	StopOnError bool     `json:"stop_on_error"`
}

type batchSendEntryPayload struct {
	OrderID        string `json:"order_id"`
	OK             bool   `json:"ok"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	DeliveryStatus string `json:"delivery_status,omitempty"`
	Error          string `json:"error,omitempty"`
}

type batchSendResponse struct {
	Total     int                     `json:"total"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Company   companyRefPayload       `json:"company"`
	Results   []batchSendEntryPayload `json:"results"`
}

func (h *DeliveryHandlers) batchSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req batchSendRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if len(req.OrderIDs) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_ids is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.BatchSendOrders(ctx, services.BatchSendCommand{
		OrderIDs:    req.OrderIDs,
		CompanyID:   req.CompanyID,
		CompanyCode: req.CompanyCode,
		DeliveryFee: req.DeliveryFee,
		StopOnError: req.StopOnError,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	entries := make([]batchSendEntryPayload, 0, len(result.Results))
	for _, entry := range result.Results {
		entries = append(entries, batchSendEntryPayload{
			OrderID:        entry.OrderID,
			OK:             entry.OK,
			TrackingNumber: entry.TrackingNumber,
			DeliveryStatus: entry.DeliveryStatus,
			Error:          entry.Error,
		})
	}
	writeJSONResponse(w, http.StatusOK, batchSendResponse{
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Company:   buildCompanyRef(result.Company),
		Results:   entries,
	})
}

type batchAssignRequest struct {
	OrderIDs       []string `json:"order_ids"`
	CompanyID      string   `json:"company_id"`
	TrackingNumber string   `json:"tracking_number"`
	DeliveryStatus string   `json:"delivery_status"`
	OrderStatus    string   `json:"order_status"`
}

type batchAssignFailurePayload struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

type batchAssignResponse struct {
	Total    int                         `json:"total"`
	Modified int                         `json:"modified"`
	Failed   []batchAssignFailurePayload `json:"failed,omitempty"`
}

func (h *DeliveryHandlers) batchAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req batchAssignRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	result, err := h.delivery.BatchAssign(ctx, services.BatchAssignCommand{
		OrderIDs:       req.OrderIDs,
		CompanyID:      req.CompanyID,
		TrackingNumber: req.TrackingNumber,
		DeliveryStatus: req.DeliveryStatus,
		OrderStatus:    req.OrderStatus,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	failures := make([]batchAssignFailurePayload, 0, len(result.Failed))
	for _, failure := range result.Failed {
		failures = append(failures, batchAssignFailurePayload{OrderID: failure.OrderID, Error: failure.Error})
	}
	writeJSONResponse(w, http.StatusOK, batchAssignResponse{
		Total:    result.Total,
		Modified: result.Modified,
		Failed:   failures,
	})
}

type deliveryStatusResponse struct {
	OrderID        string            `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	Company        companyRefPayload `json:"company"`
	DeliveryStatus string            `json:"delivery_status"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	AssignedAt     string            `json:"assigned_at,omitempty"`
	StatusUpdated  string            `json:"status_updated,omitempty"`
	EstimatedDate  string            `json:"estimated_date,omitempty"`
	ActualDate     string            `json:"actual_date,omitempty"`
}

func (h *DeliveryHandlers) deliveryStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.DeliveryStatusFor(ctx, orderID)
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, deliveryStatusResponse{
		OrderID:        result.OrderID,
		OrderNumber:    result.OrderNumber,
		Company:        buildCompanyRef(result.Company),
		DeliveryStatus: string(result.DeliveryStatus),
		TrackingNumber: result.TrackingNumber,
		AssignedAt:     formatTimePtr(result.AssignedAt),
		StatusUpdated:  formatTimePtr(result.StatusUpdated),
		EstimatedDate:  formatTimePtr(result.EstimatedDate),
		ActualDate:     formatTimePtr(result.ActualDate),
	})
}

type validateMappingsRequest struct {
	OrderID     string `json:"order_id"`
	CompanyID   string `json:"company_id"`
	CompanyCode string `json:"company_code"`
}

type mappingReportPayload struct {
	Company        companyRefPayload `json:"company"`
	OK             bool              `json:"ok"`
	MissingFields  []string          `json:"missing_fields"`
	PayloadPreview map[string]any    `json:"payload_preview"`
}

func (h *DeliveryHandlers) validateMappings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req validateMappingsRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.ValidateMappings(ctx, services.ValidateMappingsCommand{
		OrderID:     req.OrderID,
		CompanyID:   req.CompanyID,
		CompanyCode: req.CompanyCode,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildMappingReport(result))
}

type validateMappingsAllRequest struct {
	OrderID    string   `json:"order_id"`
	CompanyIDs []string `json:"company_ids"`
	ActiveOnly bool     `json:"active_only"`
}

type validateMappingsAllResponse struct {
	Results []mappingReportPayload `json:"results"`
}

func (h *DeliveryHandlers) validateMappingsAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req validateMappingsAllRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	results, err := h.delivery.ValidateMappingsAll(ctx, services.ValidateMappingsAllCommand{
		OrderID:    req.OrderID,
		CompanyIDs: req.CompanyIDs,
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	payload := validateMappingsAllResponse{Results: make([]mappingReportPayload, 0, len(results))}
	for _, result := range results {
		payload.Results = append(payload.Results, buildMappingReport(result))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

type paramResolutionPayload struct {
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source,omitempty"`
}

type validateConfigResponse struct {
	Company companyRefPayload        `json:"company"`
	OK      bool                     `json:"ok"`
	Issues  []string                 `json:"issues"`
	Mode    string                   `json:"mode"`
	URL     string                   `json:"url,omitempty"`
	Params  []paramResolutionPayload `json:"params,omitempty"`
}

func (h *DeliveryHandlers) validateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	companyID := strings.TrimSpace(chi.URLParam(r, "companyID"))
	if companyID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "company id is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.ValidateConfig(ctx, companyID)
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	params := make([]paramResolutionPayload, 0, len(result.Params))
	for _, param := range result.Params {
		payload := paramResolutionPayload{Name: param.Name, Source: string(param.Source)}
		// Secret-bearing parameters are reported by source only.
		if param.Name != "password" {
			payload.Value = param.Value
		}
		params = append(params, payload)
	}

	writeJSONResponse(w, http.StatusOK, validateConfigResponse{
		Company: buildCompanyRef(result.Company),
		OK:      result.Report.OK,
		Issues:  result.Report.Issues,
		Mode:    string(result.Report.Mode),
		URL:     result.Report.URL,
		Params:  params,
	})
}

type proxyRequest struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Params      map[string]any    `json:"params"`
	CompanyID   string            `json:"company_id"`
	CompanyCode string            `json:"company_code"`
}

type proxyResponse struct {
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body,omitempty"`
	RawBody    string         `json:"raw_body,omitempty"`
}

func (h *DeliveryHandlers) proxyList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req proxyRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "url is required", http.StatusBadRequest))
		return
	}

	result, err := h.delivery.Proxy(ctx, services.ProxyCommand{
		URL:         req.URL,
		Method:      req.Method,
		Headers:     req.Headers,
		Params:      req.Params,
		CompanyID:   req.CompanyID,
		CompanyCode: req.CompanyCode,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, proxyResponse{
		StatusCode: result.StatusCode,
		Body:       result.Body,
		RawBody:    result.RawBody,
	})
}

func buildCompanyRef(ref services.CompanyRef) companyRefPayload {
	return companyRefPayload{ID: ref.ID, Code: ref.Code, Name: ref.Name}
}

func buildMappingReport(result services.MappingValidationResult) mappingReportPayload {
	missing := result.Report.Missing
	if missing == nil {
		missing = []string{}
	}
	preview := result.Report.Payload
	if preview == nil {
		preview = map[string]any{}
	}
	return mappingReportPayload{
		Company:        buildCompanyRef(result.Company),
		OK:             result.Report.OK,
		MissingFields:  missing,
		PayloadPreview: preview,
	}
}

func decodeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxDeliveryBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeDeliveryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var cfgErr *services.ConfigValidationError
	if errors.As(err, &cfgErr) {
		httpx.WriteError(ctx, w, httpx.NewError("config_invalid", "company configuration is invalid", http.StatusBadRequest).
			WithDetails(map[string]any{"issues": cfgErr.Report.Issues, "company": cfgErr.Company.Code}))
		return
	}
	var mapErr *services.MappingValidationError
	if errors.As(err, &mapErr) {
		httpx.WriteError(ctx, w, httpx.NewError("mapping_missing", "required field mappings are missing", http.StatusBadRequest).
			WithDetails(map[string]any{
				"missing_fields":  mapErr.Report.Missing,
				"payload_preview": mapErr.Report.Payload,
				"company":         mapErr.Company.Code,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrDeliveryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotAssigned):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_assigned", "order has no delivery company", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order has changed; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCompanyNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("company_not_found", "delivery company not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProviderFailure):
		status := http.StatusBadGateway
		details := map[string]any{}
		if pe, ok := dispatch.AsProviderError(err); ok {
			if !pe.IsUpstreamFault() {
				status = http.StatusInternalServerError
			}
			if pe.StatusCode > 0 {
				details["provider_status"] = pe.StatusCode
			}
		}
		httpx.WriteError(ctx, w, httpx.NewError("provider_error", "delivery provider call failed", status).WithDetails(details))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("delivery_error", "failed to process delivery request", http.StatusInternalServerError))
	}
}
