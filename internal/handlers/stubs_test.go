package handlers

import (
	"context"
	"errors"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/services"
)

type stubDeliveryService struct {
	sendFn          func(context.Context, services.SendOrderCommand) (services.SendOrderResult, error)
	batchSendFn     func(context.Context, services.BatchSendCommand) (services.BatchSendResult, error)
	batchAssignFn   func(context.Context, services.BatchAssignCommand) (services.BatchAssignResult, error)
	statusFn        func(context.Context, string) (services.DeliveryStatusResult, error)
	validateFn      func(context.Context, services.ValidateMappingsCommand) (services.MappingValidationResult, error)
	validateAllFn   func(context.Context, services.ValidateMappingsAllCommand) ([]services.MappingValidationResult, error)
	validateCfgFn   func(context.Context, string) (services.ConfigValidationResult, error)
	proxyFn         func(context.Context, services.ProxyCommand) (services.ProxyResult, error)
	applyWebhookFn  func(context.Context, services.WebhookCommand) (services.WebhookResult, error)
	webhookApplied  int
}

func (s *stubDeliveryService) SendOrder(ctx context.Context, cmd services.SendOrderCommand) (services.SendOrderResult, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, cmd)
	}
	return services.SendOrderResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) BatchSendOrders(ctx context.Context, cmd services.BatchSendCommand) (services.BatchSendResult, error) {
	if s.batchSendFn != nil {
		return s.batchSendFn(ctx, cmd)
	}
	return services.BatchSendResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) BatchAssign(ctx context.Context, cmd services.BatchAssignCommand) (services.BatchAssignResult, error) {
	if s.batchAssignFn != nil {
		return s.batchAssignFn(ctx, cmd)
	}
	return services.BatchAssignResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) DeliveryStatusFor(ctx context.Context, orderID string) (services.DeliveryStatusResult, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, orderID)
	}
	return services.DeliveryStatusResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) ValidateMappings(ctx context.Context, cmd services.ValidateMappingsCommand) (services.MappingValidationResult, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, cmd)
	}
	return services.MappingValidationResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) ValidateMappingsAll(ctx context.Context, cmd services.ValidateMappingsAllCommand) ([]services.MappingValidationResult, error) {
	if s.validateAllFn != nil {
		return s.validateAllFn(ctx, cmd)
	}
	return nil, errors.New("not implemented")
}

func (s *stubDeliveryService) ValidateConfig(ctx context.Context, companyID string) (services.ConfigValidationResult, error) {
	if s.validateCfgFn != nil {
		return s.validateCfgFn(ctx, companyID)
	}
	return services.ConfigValidationResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) Proxy(ctx context.Context, cmd services.ProxyCommand) (services.ProxyResult, error) {
	if s.proxyFn != nil {
		return s.proxyFn(ctx, cmd)
	}
	return services.ProxyResult{}, errors.New("not implemented")
}

func (s *stubDeliveryService) ApplyStatusWebhook(ctx context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
	s.webhookApplied++
	if s.applyWebhookFn != nil {
		return s.applyWebhookFn(ctx, cmd)
	}
	return services.WebhookResult{}, errors.New("not implemented")
}

type stubCompanyService struct {
	createFn    func(context.Context, services.UpsertCompanyCommand) (domain.DeliveryCompany, error)
	updateFn    func(context.Context, string, services.UpsertCompanyCommand) (domain.DeliveryCompany, error)
	deleteFn    func(context.Context, string) error
	getFn       func(context.Context, string) (domain.DeliveryCompany, error)
	getByCodeFn func(context.Context, string) (domain.DeliveryCompany, error)
	listFn      func(context.Context, services.CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error)
}

func (s *stubCompanyService) Create(ctx context.Context, cmd services.UpsertCompanyCommand) (domain.DeliveryCompany, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.DeliveryCompany{}, errors.New("not implemented")
}

func (s *stubCompanyService) Update(ctx context.Context, companyID string, cmd services.UpsertCompanyCommand) (domain.DeliveryCompany, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, companyID, cmd)
	}
	return domain.DeliveryCompany{}, errors.New("not implemented")
}

func (s *stubCompanyService) Delete(ctx context.Context, companyID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, companyID)
	}
	return errors.New("not implemented")
}

func (s *stubCompanyService) Get(ctx context.Context, companyID string) (domain.DeliveryCompany, error) {
	if s.getFn != nil {
		return s.getFn(ctx, companyID)
	}
	return domain.DeliveryCompany{}, errors.New("not implemented")
}

func (s *stubCompanyService) GetByCode(ctx context.Context, code string) (domain.DeliveryCompany, error) {
	if s.getByCodeFn != nil {
		return s.getByCodeFn(ctx, code)
	}
	return domain.DeliveryCompany{}, errors.New("not implemented")
}

func (s *stubCompanyService) List(ctx context.Context, filter services.CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.DeliveryCompany]{}, errors.New("not implemented")
}

type stubSystemService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}
