package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/dispatch"
	"github.com/itszainshop-byte/zain/internal/platform/pagination"
	"github.com/itszainshop-byte/zain/internal/platform/textutil"
	"github.com/itszainshop-byte/zain/internal/repositories"
)

const companyIDPrefix = "cmp_"

var (
	// ErrCompanyInvalidInput signals the caller provided invalid company data.
	ErrCompanyInvalidInput = errors.New("company: invalid input")
	// ErrCompanyConflict indicates a duplicate code or a stale optimistic write.
	ErrCompanyConflict = errors.New("company: conflict")
	// ErrCompanyMissing indicates the company could not be located.
	ErrCompanyMissing = errors.New("company: not found")
)

// CompanyServiceDeps bundles collaborators required to construct the company service.
type CompanyServiceDeps struct {
	Companies repositories.DeliveryCompanyRepository
	// ParamEnv feeds the configuration validator's environment overrides.
	ParamEnv    map[string]string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type companyService struct {
	companies repositories.DeliveryCompanyRepository
	paramEnv  map[string]string
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCompanyService wires dependencies into a concrete CompanyService implementation.
func NewCompanyService(deps CompanyServiceDeps) (CompanyService, error) {
	if deps.Companies == nil {
		return nil, errors.New("company service: company repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return companyIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &companyService{
		companies: deps.Companies,
		paramEnv:  deps.ParamEnv,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *companyService) Create(ctx context.Context, cmd UpsertCompanyCommand) (domain.DeliveryCompany, error) {
	company, err := s.buildCompany(cmd)
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	company.ID = s.newID()
	now := s.clock()
	company.CreatedAt = now
	company.UpdatedAt = now

	if existing, err := s.companies.FindByCode(ctx, company.Code); err == nil && existing.ID != "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: code %q already in use", ErrCompanyConflict, company.Code)
	} else if err != nil && !isNotFound(err) {
		return domain.DeliveryCompany{}, err
	}

	saved, err := s.companies.Insert(ctx, company)
	if err != nil {
		return domain.DeliveryCompany{}, s.translateError(err)
	}

	if saved.IsDefault {
		if err := s.companies.ClearDefaults(ctx, saved.ID); err != nil {
			return domain.DeliveryCompany{}, err
		}
	}

	s.logger(ctx, "company created", map[string]any{"company": saved.ID, "code": saved.Code})
	return saved, nil
}

func (s *companyService) Update(ctx context.Context, companyID string, cmd UpsertCompanyCommand) (domain.DeliveryCompany, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: company id is required", ErrCompanyInvalidInput)
	}

	current, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return domain.DeliveryCompany{}, s.translateError(err)
	}

	company, err := s.buildCompany(cmd)
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	company.ID = current.ID
	company.CreatedAt = current.CreatedAt
	company.LastSyncTime = cmd.LastSyncTime
	if company.LastSyncTime.IsZero() {
		company.LastSyncTime = current.LastSyncTime
	}

	if company.Code != current.Code {
		if existing, err := s.companies.FindByCode(ctx, company.Code); err == nil && existing.ID != company.ID {
			return domain.DeliveryCompany{}, fmt.Errorf("%w: code %q already in use", ErrCompanyConflict, company.Code)
		} else if err != nil && !isNotFound(err) {
			return domain.DeliveryCompany{}, err
		}
	}

	saved, err := s.companies.Update(ctx, company)
	if err != nil {
		return domain.DeliveryCompany{}, s.translateError(err)
	}

	if saved.IsDefault {
		if err := s.companies.ClearDefaults(ctx, saved.ID); err != nil {
			return domain.DeliveryCompany{}, err
		}
	}

	s.logger(ctx, "company updated", map[string]any{"company": saved.ID, "code": saved.Code})
	return saved, nil
}

func (s *companyService) Delete(ctx context.Context, companyID string) error {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return fmt.Errorf("%w: company id is required", ErrCompanyInvalidInput)
	}
	if err := s.companies.Delete(ctx, companyID); err != nil {
		return s.translateError(err)
	}
	s.logger(ctx, "company deleted", map[string]any{"company": companyID})
	return nil
}

func (s *companyService) Get(ctx context.Context, companyID string) (domain.DeliveryCompany, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: company id is required", ErrCompanyInvalidInput)
	}
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return domain.DeliveryCompany{}, s.translateError(err)
	}
	return company, nil
}

func (s *companyService) GetByCode(ctx context.Context, code string) (domain.DeliveryCompany, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: company code is required", ErrCompanyInvalidInput)
	}
	company, err := s.companies.FindByCode(ctx, code)
	if err != nil {
		return domain.DeliveryCompany{}, s.translateError(err)
	}
	return company, nil
}

func (s *companyService) List(ctx context.Context, filter CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error) {
	page, err := s.companies.List(ctx, repositories.CompanyListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: domain.Pagination{
			PageSize:  filter.PageSize,
			PageToken: filter.PageToken,
		},
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[domain.DeliveryCompany]{}, fmt.Errorf("%w: %v", ErrCompanyInvalidInput, err)
		}
		return domain.CursorPage[domain.DeliveryCompany]{}, s.translateError(err)
	}
	return page, nil
}

// buildCompany normalises and validates the writable fields. The API
// configuration must pass the dispatch validator before any write: the
// tagged transport/auth union is enforced here rather than at send time.
func (s *companyService) buildCompany(cmd UpsertCompanyCommand) (domain.DeliveryCompany, error) {
	code := strings.ToLower(strings.TrimSpace(cmd.Code))
	name := strings.TrimSpace(cmd.Name)
	if code == "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: code is required", ErrCompanyInvalidInput)
	}
	if name == "" {
		return domain.DeliveryCompany{}, fmt.Errorf("%w: name is required", ErrCompanyInvalidInput)
	}

	company := domain.DeliveryCompany{
		Code:             code,
		Name:             name,
		IsActive:         true,
		APIConfiguration: cmd.APIConfiguration,
		Credentials:      cmd.Credentials,
		CustomFields:     textutil.NormalizeStringMap(cmd.CustomFields),
		UpdatedAt:        s.clock(),
	}
	company.APIConfiguration.Params = textutil.NormalizeStringMap(cmd.APIConfiguration.Params)
	company.APIConfiguration.QueryParams = textutil.NormalizeStringMap(cmd.APIConfiguration.QueryParams)
	company.APIConfiguration.Headers = textutil.NormalizeStringMap(cmd.APIConfiguration.Headers)
	if cmd.IsActive != nil {
		company.IsActive = *cmd.IsActive
	}
	if cmd.IsDefault != nil {
		company.IsDefault = *cmd.IsDefault
	}
	company.APIConfiguration.Transport = domain.NormalizeTransport(string(cmd.APIConfiguration.Transport))
	if company.APIConfiguration.Auth.Method == "" {
		company.APIConfiguration.Auth.Method = domain.AuthNone
	}

	for _, m := range cmd.FieldMappings {
		if strings.TrimSpace(m.CompanyField) == "" || strings.TrimSpace(m.InternalField) == "" {
			continue
		}
		company.FieldMappings = append(company.FieldMappings, domain.FieldMapping{
			CompanyField:  strings.TrimSpace(m.CompanyField),
			InternalField: strings.TrimSpace(m.InternalField),
			Required:      m.Required,
		})
	}
	for _, m := range cmd.StatusMappings {
		companyStatus := strings.TrimSpace(m.CompanyStatus)
		internalStatus := dispatch.NormalizeProviderStatus(m.InternalStatus)
		if companyStatus == "" || internalStatus == "" {
			continue
		}
		if !domain.ValidDeliveryStatus(internalStatus) {
			return domain.DeliveryCompany{}, fmt.Errorf("%w: status mapping target %q is not a delivery status", ErrCompanyInvalidInput, m.InternalStatus)
		}
		company.StatusMappings = append(company.StatusMappings, domain.StatusMapping{
			CompanyStatus:  companyStatus,
			InternalStatus: internalStatus,
		})
	}
	company.AreaMappings = append(company.AreaMappings, cmd.AreaMappings...)

	if report := dispatch.ValidateCompanyConfiguration(&company, dispatch.WithEnvOverrides(s.paramEnv)); !report.OK {
		return domain.DeliveryCompany{}, &ConfigValidationError{
			Company: CompanyRef{Code: company.Code, Name: company.Name},
			Report:  report,
		}
	}

	return company, nil
}

func (s *companyService) translateError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCompanyMissing, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCompanyConflict, err)
		}
	}
	return err
}
