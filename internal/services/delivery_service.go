package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/dispatch"
	"github.com/itszainshop-byte/zain/internal/repositories"
)

const (
	deliveryEventUpdated    = "order.delivery.updated"
	deliveryEventDispatched = "order.delivery.dispatched"

	maxProxyResponseBytes = 1 << 20
)

var (
	// ErrDeliveryInvalidInput signals the caller provided invalid data.
	ErrDeliveryInvalidInput = errors.New("delivery: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("delivery: order not found")
	// ErrOrderNotAssigned indicates the order has no delivery company yet.
	ErrOrderNotAssigned = errors.New("delivery: order not assigned")
	// ErrOrderConflict indicates an optimistic concurrency conflict on the order write.
	ErrOrderConflict = errors.New("delivery: order conflict")
	// ErrCompanyNotFound indicates no delivery company could be resolved.
	ErrCompanyNotFound = errors.New("delivery: company not found")
	// ErrCompanyConfigInvalid indicates the resolved company failed configuration validation.
	ErrCompanyConfigInvalid = errors.New("delivery: company configuration invalid")
	// ErrMappingIncomplete indicates required field mappings could not be resolved.
	ErrMappingIncomplete = errors.New("delivery: required mappings missing")
	// ErrProviderFailure indicates the outbound provider call failed.
	ErrProviderFailure = errors.New("delivery: provider call failed")
)

// ConfigValidationError carries the structured report behind ErrCompanyConfigInvalid.
type ConfigValidationError struct {
	Company CompanyRef
	Report  dispatch.ConfigReport
}

// Error implements the error interface.
func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCompanyConfigInvalid, strings.Join(e.Report.Issues, "; "))
}

// Unwrap ties the structured error to its sentinel.
func (e *ConfigValidationError) Unwrap() error { return ErrCompanyConfigInvalid }

// MappingValidationError carries the structured report behind ErrMappingIncomplete.
type MappingValidationError struct {
	Company CompanyRef
	Report  dispatch.MappingReport
}

// Error implements the error interface.
func (e *MappingValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMappingIncomplete, strings.Join(e.Report.Missing, ", "))
}

// Unwrap ties the structured error to its sentinel.
func (e *MappingValidationError) Unwrap() error { return ErrMappingIncomplete }

// DeliveryServiceDeps bundles collaborators required to construct the delivery service.
type DeliveryServiceDeps struct {
	Orders    repositories.OrderRepository
	Companies repositories.DeliveryCompanyRepository
	Sender    *dispatch.Sender
	// ParamEnv supplies deployment-wide parameter overrides consulted by the
	// configuration validator (for example a default "db").
	ParamEnv   map[string]string
	HTTPClient *http.Client
	Events     DeliveryEventPublisher
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type deliveryService struct {
	orders    repositories.OrderRepository
	companies repositories.DeliveryCompanyRepository
	sender    *dispatch.Sender
	paramEnv  map[string]string
	httpc     *http.Client
	events    DeliveryEventPublisher
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewDeliveryService wires dependencies into a concrete DeliveryService implementation.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("delivery service: order repository is required")
	}
	if deps.Companies == nil {
		return nil, errors.New("delivery service: company repository is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("delivery service: sender is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	httpc := deps.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}

	return &deliveryService{
		orders:    deps.Orders,
		companies: deps.Companies,
		sender:    deps.Sender,
		paramEnv:  deps.ParamEnv,
		httpc:     httpc,
		events:    deps.Events,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *deliveryService) SendOrder(ctx context.Context, cmd SendOrderCommand) (SendOrderResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return SendOrderResult{}, fmt.Errorf("%w: order id is required", ErrDeliveryInvalidInput)
	}

	// Company resolution comes first so a missing company is reported even
	// when the order is also unknown.
	company, err := s.resolveCompany(ctx, cmd.CompanyID, cmd.CompanyCode)
	if err != nil {
		return SendOrderResult{}, err
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return SendOrderResult{}, err
	}

	if report := dispatch.ValidateCompanyConfiguration(&company, dispatch.WithEnvOverrides(s.paramEnv)); !report.OK {
		return SendOrderResult{}, &ConfigValidationError{Company: companyRef(company), Report: report}
	}

	mapping := dispatch.ValidateRequiredMappings(&order, &company)
	if !mapping.OK {
		return SendOrderResult{}, &MappingValidationError{Company: companyRef(company), Report: mapping}
	}

	result, err := s.sender.Send(ctx, &company, mapping.Payload)
	if err != nil {
		s.logger(ctx, "delivery send failed", map[string]any{
			"order":   order.ID,
			"company": company.Code,
			"error":   err.Error(),
		})
		return SendOrderResult{}, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	now := s.clock()
	order.Delivery.CompanyID = company.ID
	order.Delivery.CompanyCode = company.Code
	order.Delivery.CompanyName = company.Name
	order.Delivery.Status = dispatch.MapStatus(&company, result.ProviderStatus)
	order.Delivery.AssignedAt = &now
	order.Delivery.StatusUpdated = &now
	order.Delivery.Response = result.Response
	if result.TrackingNumber != "" {
		order.SetTrackingNumber(result.TrackingNumber)
	}
	if cmd.DeliveryFee != nil {
		// Recorded as provided; fee correctness is the operator's concern.
		order.Delivery.Fee = *cmd.DeliveryFee
	}
	if notes := strings.TrimSpace(cmd.Notes); notes != "" {
		order.Delivery.Notes = notes
	}
	if order.Status == domain.OrderStatusPaid || order.Status == domain.OrderStatusProcessing {
		order.Status = domain.OrderStatusShipped
	}

	saved, err := s.orders.Update(ctx, order)
	if err != nil {
		return SendOrderResult{}, s.translateOrderError(err)
	}

	s.publish(ctx, DeliveryEvent{
		Type:           deliveryEventDispatched,
		OrderID:        saved.ID,
		OrderNumber:    saved.OrderNumber,
		CompanyID:      company.ID,
		CompanyCode:    company.Code,
		TrackingNumber: saved.TrackingNumber(),
		DeliveryStatus: string(saved.Delivery.Status),
		OccurredAt:     now,
	})

	return SendOrderResult{
		Order:          saved,
		Company:        companyRef(company),
		TrackingNumber: saved.TrackingNumber(),
		DeliveryStatus: saved.Delivery.Status,
		Response:       result.Response,
	}, nil
}

func (s *deliveryService) BatchSendOrders(ctx context.Context, cmd BatchSendCommand) (BatchSendResult, error) {
	if len(cmd.OrderIDs) == 0 {
		return BatchSendResult{}, fmt.Errorf("%w: at least one order id is required", ErrDeliveryInvalidInput)
	}

	// The company is resolved once so every order in the batch ships with the
	// same carrier even if the default changes mid-run.
	company, err := s.resolveCompany(ctx, cmd.CompanyID, cmd.CompanyCode)
	if err != nil {
		return BatchSendResult{}, err
	}

	result := BatchSendResult{Total: len(cmd.OrderIDs), Company: companyRef(company)}
	for _, orderID := range cmd.OrderIDs {
		entry := BatchSendEntry{OrderID: strings.TrimSpace(orderID)}
		sent, err := s.SendOrder(ctx, SendOrderCommand{
			OrderID:     orderID,
			CompanyID:   company.ID,
			DeliveryFee: cmd.DeliveryFee,
		})
		if err != nil {
			entry.Error = batchEntryError(err)
			result.Failed++
			result.Results = append(result.Results, entry)
			if cmd.StopOnError {
				break
			}
			continue
		}
		entry.OK = true
		entry.TrackingNumber = sent.TrackingNumber
		entry.DeliveryStatus = string(sent.DeliveryStatus)
		result.Succeeded++
		result.Results = append(result.Results, entry)
	}
	return result, nil
}

func (s *deliveryService) BatchAssign(ctx context.Context, cmd BatchAssignCommand) (BatchAssignResult, error) {
	if len(cmd.OrderIDs) == 0 {
		return BatchAssignResult{}, fmt.Errorf("%w: at least one order id is required", ErrDeliveryInvalidInput)
	}
	if strings.TrimSpace(cmd.CompanyID) == "" {
		return BatchAssignResult{}, fmt.Errorf("%w: company id is required", ErrDeliveryInvalidInput)
	}

	company, err := s.resolveCompany(ctx, cmd.CompanyID, "")
	if err != nil {
		return BatchAssignResult{}, err
	}

	deliveryStatus := domain.DeliveryStatusAssigned
	if raw := dispatch.NormalizeProviderStatus(cmd.DeliveryStatus); raw != "" {
		if !domain.ValidDeliveryStatus(raw) {
			return BatchAssignResult{}, fmt.Errorf("%w: unknown delivery status %q", ErrDeliveryInvalidInput, cmd.DeliveryStatus)
		}
		deliveryStatus = domain.DeliveryStatus(raw)
	}

	result := BatchAssignResult{Total: len(cmd.OrderIDs)}
	for _, orderID := range cmd.OrderIDs {
		order, err := s.findOrder(ctx, strings.TrimSpace(orderID))
		if err != nil {
			result.Failed = append(result.Failed, BatchAssignFailure{OrderID: orderID, Error: batchEntryError(err)})
			continue
		}

		now := s.clock()
		order.Delivery.CompanyID = company.ID
		order.Delivery.CompanyCode = company.Code
		order.Delivery.CompanyName = company.Name
		order.Delivery.Status = deliveryStatus
		order.Delivery.AssignedAt = &now
		order.Delivery.StatusUpdated = &now
		if tracking := strings.TrimSpace(cmd.TrackingNumber); tracking != "" {
			order.SetTrackingNumber(tracking)
		}
		if status := strings.TrimSpace(cmd.OrderStatus); status != "" {
			order.Status = domain.OrderStatus(status)
		}

		if _, err := s.orders.Update(ctx, order); err != nil {
			result.Failed = append(result.Failed, BatchAssignFailure{OrderID: orderID, Error: batchEntryError(s.translateOrderError(err))})
			continue
		}
		result.Modified++
	}
	return result, nil
}

func (s *deliveryService) DeliveryStatusFor(ctx context.Context, orderID string) (DeliveryStatusResult, error) {
	order, err := s.findOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return DeliveryStatusResult{}, err
	}
	if strings.TrimSpace(order.Delivery.CompanyID) == "" && strings.TrimSpace(order.Delivery.CompanyCode) == "" {
		return DeliveryStatusResult{}, fmt.Errorf("%w: order %s has no delivery company", ErrOrderNotAssigned, order.ID)
	}

	return DeliveryStatusResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Company: CompanyRef{
			ID:   order.Delivery.CompanyID,
			Code: order.Delivery.CompanyCode,
			Name: order.Delivery.CompanyName,
		},
		DeliveryStatus: order.Delivery.Status,
		TrackingNumber: order.TrackingNumber(),
		AssignedAt:     order.Delivery.AssignedAt,
		StatusUpdated:  order.Delivery.StatusUpdated,
		EstimatedDate:  order.Delivery.EstimatedDate,
		ActualDate:     order.Delivery.ActualDate,
	}, nil
}

func (s *deliveryService) ValidateMappings(ctx context.Context, cmd ValidateMappingsCommand) (MappingValidationResult, error) {
	order, err := s.findOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return MappingValidationResult{}, err
	}
	company, err := s.resolveCompany(ctx, cmd.CompanyID, cmd.CompanyCode)
	if err != nil {
		return MappingValidationResult{}, err
	}
	return MappingValidationResult{
		Company: companyRef(company),
		Report:  dispatch.ValidateRequiredMappings(&order, &company),
	}, nil
}

func (s *deliveryService) ValidateMappingsAll(ctx context.Context, cmd ValidateMappingsAllCommand) ([]MappingValidationResult, error) {
	order, err := s.findOrder(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return nil, err
	}

	var companies []domain.DeliveryCompany
	if len(cmd.CompanyIDs) > 0 {
		for _, id := range cmd.CompanyIDs {
			company, err := s.companies.FindByID(ctx, strings.TrimSpace(id))
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, err
			}
			companies = append(companies, company)
		}
	} else {
		page, err := s.companies.List(ctx, repositories.CompanyListFilter{ActiveOnly: cmd.ActiveOnly})
		if err != nil {
			return nil, err
		}
		companies = page.Items
	}

	results := make([]MappingValidationResult, 0, len(companies))
	for i := range companies {
		results = append(results, MappingValidationResult{
			Company: companyRef(companies[i]),
			Report:  dispatch.ValidateRequiredMappings(&order, &companies[i]),
		})
	}
	return results, nil
}

func (s *deliveryService) ValidateConfig(ctx context.Context, companyID string) (ConfigValidationResult, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return ConfigValidationResult{}, fmt.Errorf("%w: company id is required", ErrDeliveryInvalidInput)
	}
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		if isNotFound(err) {
			return ConfigValidationResult{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
		}
		return ConfigValidationResult{}, err
	}

	report := dispatch.ValidateCompanyConfiguration(&company, dispatch.WithEnvOverrides(s.paramEnv))

	// Report where each required parameter resolves from so operators can see
	// the effective precedence without reading source.
	var params []dispatch.ParamResolution
	names := append([]string(nil), company.APIConfiguration.RequiredParams...)
	if !containsFold(names, "db") && resolvesAny(&company, s.paramEnv, "db") {
		names = append(names, "db")
	}
	sort.Strings(names)
	for _, name := range names {
		resolution, _ := dispatch.ResolveParam(&company, s.paramEnv, name)
		params = append(params, resolution)
	}

	return ConfigValidationResult{
		Company: companyRef(company),
		Report:  report,
		Params:  params,
	}, nil
}

func (s *deliveryService) Proxy(ctx context.Context, cmd ProxyCommand) (ProxyResult, error) {
	target := strings.TrimSpace(cmd.URL)
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ProxyResult{}, fmt.Errorf("%w: url must be http(s)", ErrDeliveryInvalidInput)
	}

	params := map[string]any{}
	for key, value := range cmd.Params {
		params[key] = value
	}

	// Stored credentials enrich the forwarded call when a company is named.
	var company *domain.DeliveryCompany
	if strings.TrimSpace(cmd.CompanyID) != "" || strings.TrimSpace(cmd.CompanyCode) != "" {
		resolved, err := s.resolveCompany(ctx, cmd.CompanyID, cmd.CompanyCode)
		if err != nil {
			return ProxyResult{}, err
		}
		company = &resolved
		if login := strings.TrimSpace(resolved.Credentials.Login); login != "" {
			params["login"] = login
		}
		if password := strings.TrimSpace(resolved.Credentials.Password); password != "" {
			params["password"] = password
		}
		if db := strings.TrimSpace(resolved.Credentials.Database); db != "" {
			params["db"] = db
		}
	}

	method := strings.ToUpper(strings.TrimSpace(cmd.Method))
	if method == "" {
		method = http.MethodPost
	}

	var req *http.Request
	if method == http.MethodGet {
		query := parsed.Query()
		for key, value := range params {
			query.Set(key, fmt.Sprint(value))
		}
		parsed.RawQuery = query.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	} else {
		var body strings.Builder
		if encodeErr := json.NewEncoder(&body).Encode(params); encodeErr != nil {
			return ProxyResult{}, fmt.Errorf("delivery proxy: encode body: %w", encodeErr)
		}
		req, err = http.NewRequestWithContext(ctx, method, parsed.String(), strings.NewReader(body.String()))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return ProxyResult{}, fmt.Errorf("delivery proxy: build request: %w", err)
	}

	for name, value := range dispatch.SanitizeHeaders(cmd.Headers) {
		req.Header.Set(name, value)
	}
	if company != nil {
		s.logger(ctx, "delivery proxy", map[string]any{"company": company.Code, "url": req.URL.Redacted()})
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return ProxyResult{}, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyResponseBytes))
	if err != nil {
		return ProxyResult{}, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	result := ProxyResult{StatusCode: resp.StatusCode, RawBody: string(raw)}
	decoded := map[string]any{}
	if json.Unmarshal(raw, &decoded) == nil {
		result.Body = decoded
	}
	return result, nil
}

func (s *deliveryService) ApplyStatusWebhook(ctx context.Context, cmd WebhookCommand) (WebhookResult, error) {
	if strings.TrimSpace(cmd.Status) == "" {
		return WebhookResult{}, fmt.Errorf("%w: status is required", ErrDeliveryInvalidInput)
	}

	order, err := s.resolveWebhookOrder(ctx, cmd)
	if err != nil {
		return WebhookResult{}, err
	}

	company := s.resolveWebhookCompany(ctx, cmd, order)

	previous := order.Delivery.Status
	mapped := dispatch.MapStatus(company, cmd.Status)

	now := s.clock()
	occurred := now
	if cmd.OccurredAt != nil && !cmd.OccurredAt.IsZero() {
		occurred = cmd.OccurredAt.UTC()
	}

	order.Delivery.Status = mapped
	order.Delivery.StatusUpdated = &occurred
	if tracking := strings.TrimSpace(cmd.TrackingNumber); tracking != "" && order.TrackingNumber() == "" {
		order.SetTrackingNumber(tracking)
	}
	if notes := strings.TrimSpace(cmd.Notes); notes != "" {
		// Provider-supplied text is untrusted; strip all markup before persisting.
		order.Delivery.Notes = strings.TrimSpace(s.sanitizer.Sanitize(notes))
	}
	if cmd.EstimatedDate != nil && !cmd.EstimatedDate.IsZero() {
		estimated := cmd.EstimatedDate.UTC()
		order.Delivery.EstimatedDate = &estimated
	}
	if cmd.ActualDate != nil && !cmd.ActualDate.IsZero() {
		actual := cmd.ActualDate.UTC()
		order.Delivery.ActualDate = &actual
	}
	if mapped == domain.DeliveryStatusDelivered && order.Delivery.ActualDate == nil {
		order.Delivery.ActualDate = &occurred
	}
	if status := strings.TrimSpace(cmd.OrderStatus); status != "" {
		order.Status = domain.OrderStatus(status)
	} else if mapped == domain.DeliveryStatusDelivered {
		order.Status = domain.OrderStatusCompleted
	}

	saved, err := s.orders.Update(ctx, order)
	if err != nil {
		return WebhookResult{}, s.translateOrderError(err)
	}

	event := DeliveryEvent{
		Type:           deliveryEventUpdated,
		OrderID:        saved.ID,
		OrderNumber:    saved.OrderNumber,
		TrackingNumber: saved.TrackingNumber(),
		DeliveryStatus: string(saved.Delivery.Status),
		OccurredAt:     occurred,
		Metadata:       map[string]any{"previousStatus": string(previous)},
	}
	if company != nil {
		event.CompanyID = company.ID
		event.CompanyCode = company.Code
	}
	s.publish(ctx, event)

	return WebhookResult{
		OrderID:        saved.ID,
		OrderNumber:    saved.OrderNumber,
		PreviousStatus: previous,
		DeliveryStatus: saved.Delivery.Status,
		TrackingNumber: saved.TrackingNumber(),
	}, nil
}

// resolveCompany implements the fallback chain: explicit id, then code, then
// the active default, then the first active company by name.
func (s *deliveryService) resolveCompany(ctx context.Context, companyID, companyCode string) (domain.DeliveryCompany, error) {
	if id := strings.TrimSpace(companyID); id != "" {
		company, err := s.companies.FindByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return domain.DeliveryCompany{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
			}
			return domain.DeliveryCompany{}, err
		}
		return company, nil
	}
	if code := strings.TrimSpace(companyCode); code != "" {
		company, err := s.companies.FindByCode(ctx, code)
		if err != nil {
			if isNotFound(err) {
				return domain.DeliveryCompany{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, code)
			}
			return domain.DeliveryCompany{}, err
		}
		return company, nil
	}

	company, err := s.companies.FindDefault(ctx)
	if err == nil {
		return company, nil
	}
	if !isNotFound(err) {
		return domain.DeliveryCompany{}, err
	}

	page, err := s.companies.List(ctx, repositories.CompanyListFilter{
		ActiveOnly: true,
		Pagination: domain.Pagination{PageSize: 1},
	})
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	if len(page.Items) == 0 {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: no active delivery company configured", ErrCompanyNotFound)
	}
	return page.Items[0], nil
}

func (s *deliveryService) resolveWebhookOrder(ctx context.Context, cmd WebhookCommand) (domain.Order, error) {
	if id := strings.TrimSpace(cmd.OrderID); id != "" {
		order, err := s.findOrder(ctx, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return domain.Order{}, err
		}
	}

	if number := strings.TrimSpace(cmd.OrderNumber); number != "" {
		if order, ok, err := s.findOneOrder(ctx, repositories.OrderListFilter{OrderNumber: number}); err != nil {
			return domain.Order{}, err
		} else if ok {
			return order, nil
		}
	}

	if tracking := strings.TrimSpace(cmd.TrackingNumber); tracking != "" {
		filters := []repositories.OrderListFilter{
			{TrackingNumber: tracking},
			{LegacyTracking: tracking},
		}
		for _, filter := range filters {
			if order, ok, err := s.findOneOrder(ctx, filter); err != nil {
				return domain.Order{}, err
			} else if ok {
				return order, nil
			}
		}
	}

	return domain.Order{}, fmt.Errorf("%w: no order matched the webhook payload", ErrOrderNotFound)
}

func (s *deliveryService) findOneOrder(ctx context.Context, filter repositories.OrderListFilter) (domain.Order, bool, error) {
	filter.Pagination = domain.Pagination{PageSize: 1}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Order{}, false, err
	}
	if len(page.Items) == 0 {
		return domain.Order{}, false, nil
	}
	return page.Items[0], true, nil
}

func (s *deliveryService) resolveWebhookCompany(ctx context.Context, cmd WebhookCommand, order domain.Order) *domain.DeliveryCompany {
	if id := strings.TrimSpace(cmd.CompanyID); id != "" {
		if company, err := s.companies.FindByID(ctx, id); err == nil {
			return &company
		}
	}
	if code := strings.TrimSpace(cmd.CompanyCode); code != "" {
		if company, err := s.companies.FindByCode(ctx, code); err == nil {
			return &company
		}
	}
	if id := strings.TrimSpace(order.Delivery.CompanyID); id != "" {
		if company, err := s.companies.FindByID(ctx, id); err == nil {
			return &company
		}
	}
	return nil
}

func (s *deliveryService) findOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return domain.Order{}, err
	}
	return order, nil
}

func (s *deliveryService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}

func (s *deliveryService) publish(ctx context.Context, event DeliveryEvent) {
	if s.events == nil {
		return
	}
	// Event delivery is best effort; a broker outage never fails the operation.
	if err := s.events.PublishDeliveryEvent(ctx, event); err != nil {
		s.logger(ctx, "delivery event publish failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func companyRef(company domain.DeliveryCompany) CompanyRef {
	return CompanyRef{ID: company.ID, Code: company.Code, Name: company.Name}
}

func batchEntryError(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, ErrCompanyNotFound):
		return "Company not found"
	case errors.Is(err, ErrCompanyConfigInvalid):
		return "Company configuration invalid"
	case errors.Is(err, ErrMappingIncomplete):
		return "Required mappings missing"
	case errors.Is(err, ErrProviderFailure):
		return "Provider call failed"
	case err != nil:
		return err.Error()
	default:
		return ""
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), needle) {
			return true
		}
	}
	return false
}

func resolvesAny(company *domain.DeliveryCompany, env map[string]string, name string) bool {
	_, ok := dispatch.ResolveParam(company, env, name)
	return ok
}
