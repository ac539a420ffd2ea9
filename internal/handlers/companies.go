package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/platform/httpx"
	"github.com/itszainshop-byte/zain/internal/platform/pagination"
	"github.com/itszainshop-byte/zain/internal/services"
)

const (
	defaultCompanyPageSize = 20
	maxCompanyPageSize     = 100
	maxCompanyBodySize     = 128 * 1024
)

// CompanyHandlers exposes the delivery-company admin CRUD endpoints.
type CompanyHandlers struct {
	companies services.CompanyService
}

// NewCompanyHandlers constructs a new CompanyHandlers instance.
func NewCompanyHandlers(companies services.CompanyService) *CompanyHandlers {
	return &CompanyHandlers{companies: companies}
}

// Routes registers the /companies endpoints.
func (h *CompanyHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCompanies)
	r.Post("/", h.createCompany)
	r.Get("/code/{code}", h.getCompanyByCode)
	r.Get("/{companyID}", h.getCompany)
	r.Put("/{companyID}", h.updateCompany)
	r.Delete("/{companyID}", h.deleteCompany)
}

type apiAuthPayload struct {
	Method       string `json:"method,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	Token        string `json:"token,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	APIKeyHeader string `json:"api_key_header,omitempty"`
}

type apiConfigurationPayload struct {
	URL            string            `json:"url"`
	Transport      string            `json:"transport,omitempty"`
	Method         string            `json:"method,omitempty"`
	HTTPMethod     string            `json:"http_method,omitempty"`
	Auth           apiAuthPayload    `json:"auth"`
	Params         map[string]string `json:"params,omitempty"`
	QueryParams    map[string]string `json:"query_params,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	RequiredParams []string          `json:"required_params,omitempty"`
	TimeoutMS      int               `json:"timeout_ms,omitempty"`
	OmitMethod     bool              `json:"omit_method,omitempty"`
}

type credentialsPayload struct {
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
}

type fieldMappingPayload struct {
	CompanyField  string `json:"company_field"`
	InternalField string `json:"internal_field"`
	Required      bool   `json:"required,omitempty"`
}

type statusMappingPayload struct {
	CompanyStatus  string `json:"company_status"`
	InternalStatus string `json:"internal_status"`
}

type areaMappingPayload struct {
	Level       string   `json:"level,omitempty"`
	AreaID      string   `json:"area_id,omitempty"`
	AreaName    string   `json:"area_name,omitempty"`
	SubAreaID   string   `json:"sub_area_id,omitempty"`
	SubAreaName string   `json:"sub_area_name,omitempty"`
	StoreCities []string `json:"store_cities,omitempty"`
}

type companyRequest struct {
	Code             string                  `json:"code"`
	Name             string                  `json:"name"`
	IsActive         *bool                   `json:"is_active"`
	IsDefault        *bool                   `json:"is_default"`
	APIConfiguration apiConfigurationPayload `json:"api_configuration"`
	Credentials      credentialsPayload      `json:"credentials"`
	FieldMappings    []fieldMappingPayload   `json:"field_mappings"`
	StatusMappings   []statusMappingPayload  `json:"status_mappings"`
	AreaMappings     []areaMappingPayload    `json:"area_mappings"`
	CustomFields     map[string]string       `json:"custom_fields"`
	LastSyncTime     string                  `json:"last_sync_time"`
}

type companyPayload struct {
	ID               string                  `json:"id"`
	Code             string                  `json:"code"`
	Name             string                  `json:"name"`
	IsActive         bool                    `json:"is_active"`
	IsDefault        bool                    `json:"is_default"`
	APIConfiguration apiConfigurationPayload `json:"api_configuration"`
	Credentials      credentialsPayload      `json:"credentials"`
	FieldMappings    []fieldMappingPayload   `json:"field_mappings,omitempty"`
	StatusMappings   []statusMappingPayload  `json:"status_mappings,omitempty"`
	AreaMappings     []areaMappingPayload    `json:"area_mappings,omitempty"`
	CustomFields     map[string]string       `json:"custom_fields,omitempty"`
	CreatedAt        string                  `json:"created_at,omitempty"`
	UpdatedAt        string                  `json:"updated_at,omitempty"`
	LastSyncTime     string                  `json:"last_sync_time,omitempty"`
}

type companyResponse struct {
	Company companyPayload `json:"company"`
}

type companyListResponse struct {
	Items         []companyPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *CompanyHandlers) listCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultCompanyPageSize,
		MaxPageSize:     maxCompanyPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.CompanyListFilter{
		ActiveOnly: strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active_only")), "true"),
		PageSize:   params.PageSize,
		PageToken:  params.PageToken,
	}

	page, err := h.companies.List(ctx, filter)
	if err != nil {
		writeCompanyError(ctx, w, err)
		return
	}

	items := make([]companyPayload, 0, len(page.Items))
	for _, company := range page.Items {
		items = append(items, buildCompanyPayload(company))
	}
	writeJSONResponse(w, http.StatusOK, companyListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CompanyHandlers) createCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req companyRequest
	if !decodeCompanyRequest(ctx, w, r, &req) {
		return
	}

	cmd, err := buildCompanyCommand(req)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	company, err := h.companies.Create(ctx, cmd)
	if err != nil {
		writeCompanyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, companyResponse{Company: buildCompanyPayload(company)})
}

func (h *CompanyHandlers) getCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	companyID := strings.TrimSpace(chi.URLParam(r, "companyID"))
	if companyID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "company id is required", http.StatusBadRequest))
		return
	}

	company, err := h.companies.Get(ctx, companyID)
	if err != nil {
		writeCompanyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, companyResponse{Company: buildCompanyPayload(company)})
}

func (h *CompanyHandlers) getCompanyByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "company code is required", http.StatusBadRequest))
		return
	}

	company, err := h.companies.GetByCode(ctx, code)
	if err != nil {
		writeCompanyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, companyResponse{Company: buildCompanyPayload(company)})
}

func (h *CompanyHandlers) updateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	companyID := strings.TrimSpace(chi.URLParam(r, "companyID"))
	if companyID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "company id is required", http.StatusBadRequest))
		return
	}

	var req companyRequest
	if !decodeCompanyRequest(ctx, w, r, &req) {
		return
	}

	cmd, err := buildCompanyCommand(req)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	company, err := h.companies.Update(ctx, companyID, cmd)
	if err != nil {
		writeCompanyError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, companyResponse{Company: buildCompanyPayload(company)})
}

func (h *CompanyHandlers) deleteCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.companies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("company_service_unavailable", "company service unavailable", http.StatusServiceUnavailable))
		return
	}

	companyID := strings.TrimSpace(chi.URLParam(r, "companyID"))
	if companyID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "company id is required", http.StatusBadRequest))
		return
	}

	if err := h.companies.Delete(ctx, companyID); err != nil {
		writeCompanyError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCompanyRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, dst *companyRequest) bool {
	return decodeRequest(ctx, w, r, dst)
}

func buildCompanyCommand(req companyRequest) (services.UpsertCompanyCommand, error) {
	cmd := services.UpsertCompanyCommand{
		Code:      req.Code,
		Name:      req.Name,
		IsActive:  req.IsActive,
		IsDefault: req.IsDefault,
		APIConfiguration: domain.APIConfiguration{
			URL:        req.APIConfiguration.URL,
			Transport:  domain.Transport(req.APIConfiguration.Transport),
			Method:     req.APIConfiguration.Method,
			HTTPMethod: req.APIConfiguration.HTTPMethod,
			Auth: domain.APIAuth{
				Method:       domain.AuthMethod(req.APIConfiguration.Auth.Method),
				Username:     req.APIConfiguration.Auth.Username,
				Password:     req.APIConfiguration.Auth.Password,
				Token:        req.APIConfiguration.Auth.Token,
				APIKey:       req.APIConfiguration.Auth.APIKey,
				APIKeyHeader: req.APIConfiguration.Auth.APIKeyHeader,
			},
			Params:         req.APIConfiguration.Params,
			QueryParams:    req.APIConfiguration.QueryParams,
			Headers:        req.APIConfiguration.Headers,
			RequiredParams: req.APIConfiguration.RequiredParams,
			TimeoutMS:      req.APIConfiguration.TimeoutMS,
			OmitMethod:     req.APIConfiguration.OmitMethod,
		},
		Credentials: domain.CompanyCredentials{
			Login:    req.Credentials.Login,
			Password: req.Credentials.Password,
			Database: req.Credentials.Database,
		},
		CustomFields: req.CustomFields,
	}

	for _, m := range req.FieldMappings {
		cmd.FieldMappings = append(cmd.FieldMappings, domain.FieldMapping{
			CompanyField:  m.CompanyField,
			InternalField: m.InternalField,
			Required:      m.Required,
		})
	}
	for _, m := range req.StatusMappings {
		cmd.StatusMappings = append(cmd.StatusMappings, domain.StatusMapping{
			CompanyStatus:  m.CompanyStatus,
			InternalStatus: m.InternalStatus,
		})
	}
	for _, m := range req.AreaMappings {
		cmd.AreaMappings = append(cmd.AreaMappings, domain.AreaMapping{
			Level:       domain.AreaMappingLevel(m.Level),
			AreaID:      m.AreaID,
			AreaName:    m.AreaName,
			SubAreaID:   m.SubAreaID,
			SubAreaName: m.SubAreaName,
			StoreCities: m.StoreCities,
		})
	}

	if raw := strings.TrimSpace(req.LastSyncTime); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return services.UpsertCompanyCommand{}, errors.New("last_sync_time must be a valid RFC3339 timestamp")
		}
		cmd.LastSyncTime = ts.UTC()
	}
	return cmd, nil
}

func buildCompanyPayload(company domain.DeliveryCompany) companyPayload {
	payload := companyPayload{
		ID:        company.ID,
		Code:      company.Code,
		Name:      company.Name,
		IsActive:  company.IsActive,
		IsDefault: company.IsDefault,
		APIConfiguration: apiConfigurationPayload{
			URL:        company.APIConfiguration.URL,
			Transport:  string(company.APIConfiguration.Transport),
			Method:     company.APIConfiguration.Method,
			HTTPMethod: company.APIConfiguration.HTTPMethod,
			Auth: apiAuthPayload{
				Method:       string(company.APIConfiguration.Auth.Method),
				Username:     company.APIConfiguration.Auth.Username,
				APIKeyHeader: company.APIConfiguration.Auth.APIKeyHeader,
			},
			Params:         company.APIConfiguration.Params,
			QueryParams:    company.APIConfiguration.QueryParams,
			Headers:        company.APIConfiguration.Headers,
			RequiredParams: company.APIConfiguration.RequiredParams,
			TimeoutMS:      company.APIConfiguration.TimeoutMS,
			OmitMethod:     company.APIConfiguration.OmitMethod,
		},
		Credentials: credentialsPayload{
			Login:    company.Credentials.Login,
			Database: company.Credentials.Database,
		},
		CustomFields: company.CustomFields,
		CreatedAt:    formatTime(company.CreatedAt),
		UpdatedAt:    formatTime(company.UpdatedAt),
		LastSyncTime: formatTime(company.LastSyncTime),
	}

	for _, m := range company.FieldMappings {
		payload.FieldMappings = append(payload.FieldMappings, fieldMappingPayload{
			CompanyField:  m.CompanyField,
			InternalField: m.InternalField,
			Required:      m.Required,
		})
	}
	for _, m := range company.StatusMappings {
		payload.StatusMappings = append(payload.StatusMappings, statusMappingPayload{
			CompanyStatus:  m.CompanyStatus,
			InternalStatus: m.InternalStatus,
		})
	}
	for _, m := range company.AreaMappings {
		payload.AreaMappings = append(payload.AreaMappings, areaMappingPayload{
			Level:       string(m.Level),
			AreaID:      m.AreaID,
			AreaName:    m.AreaName,
			SubAreaID:   m.SubAreaID,
			SubAreaName: m.SubAreaName,
			StoreCities: m.StoreCities,
		})
	}
	return payload
}

func writeCompanyError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var cfgErr *services.ConfigValidationError
	if errors.As(err, &cfgErr) {
		httpx.WriteError(ctx, w, httpx.NewError("config_invalid", "company configuration is invalid", http.StatusBadRequest).
			WithDetails(map[string]any{"issues": cfgErr.Report.Issues}))
		return
	}

	switch {
	case errors.Is(err, services.ErrCompanyInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCompanyMissing):
		httpx.WriteError(ctx, w, httpx.NewError("company_not_found", "delivery company not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCompanyConflict):
		httpx.WriteError(ctx, w, httpx.NewError("company_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("company_error", "failed to process company request", http.StatusInternalServerError))
	}
}
