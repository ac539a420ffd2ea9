package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/repositories"
	pfirestore "github.com/itszainshop-byte/zain/internal/platform/firestore"
	"github.com/itszainshop-byte/zain/internal/platform/pagination"
)

const (
	companyCollection      = "deliveryCompanies"
	defaultCompanyPageSize = 50
)

// CompanyRepository persists delivery-company configuration in Firestore.
type CompanyRepository struct {
	base     *pfirestore.BaseRepository[companyDocument]
	provider *pfirestore.Provider
}

var _ repositories.DeliveryCompanyRepository = (*CompanyRepository)(nil)

// NewCompanyRepository constructs a Firestore-backed delivery-company repository.
func NewCompanyRepository(provider *pfirestore.Provider) (*CompanyRepository, error) {
	if provider == nil {
		return nil, errors.New("company repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[companyDocument](provider, companyCollection, nil, nil)
	return &CompanyRepository{base: base, provider: provider}, nil
}

// Insert creates the company document, failing when the id already exists.
func (r *CompanyRepository) Insert(ctx context.Context, company domain.DeliveryCompany) (domain.DeliveryCompany, error) {
	if r == nil || r.base == nil {
		return domain.DeliveryCompany{}, errors.New("company repository not initialised")
	}
	if strings.TrimSpace(company.ID) == "" {
		return domain.DeliveryCompany{}, errors.New("company id is required")
	}

	doc := fromDomainCompany(company, time.Now().UTC())
	docRef, err := r.base.DocumentRef(ctx, company.ID)
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return domain.DeliveryCompany{}, pfirestore.WrapError("companies.insert", err)
	}
	return r.FindByID(ctx, company.ID)
}

// Update writes the company document, enforcing optimistic locking when the
// company carries a LastSyncTime.
func (r *CompanyRepository) Update(ctx context.Context, company domain.DeliveryCompany) (domain.DeliveryCompany, error) {
	if r == nil || r.base == nil {
		return domain.DeliveryCompany{}, errors.New("company repository not initialised")
	}
	if strings.TrimSpace(company.ID) == "" {
		return domain.DeliveryCompany{}, errors.New("company id is required")
	}

	doc := fromDomainCompany(company, time.Now().UTC())

	if company.LastSyncTime.IsZero() {
		if _, err := r.base.Set(ctx, company.ID, doc); err != nil {
			return domain.DeliveryCompany{}, err
		}
		return r.FindByID(ctx, company.ID)
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, company.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		if !snap.UpdateTime.Equal(company.LastSyncTime) {
			return status.Error(codes.Aborted, "company stale update")
		}
		return tx.Set(docRef, doc)
	}); err != nil {
		return domain.DeliveryCompany{}, pfirestore.WrapError("companies.update", err)
	}

	return r.FindByID(ctx, company.ID)
}

// Delete removes the company document.
func (r *CompanyRepository) Delete(ctx context.Context, companyID string) error {
	if r == nil || r.base == nil {
		return errors.New("company repository not initialised")
	}
	docRef, err := r.base.DocumentRef(ctx, companyID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("companies.delete", err)
	}
	return nil
}

// FindByID loads the company by document id.
func (r *CompanyRepository) FindByID(ctx context.Context, companyID string) (domain.DeliveryCompany, error) {
	if r == nil || r.base == nil {
		return domain.DeliveryCompany{}, errors.New("company repository not initialised")
	}
	if strings.TrimSpace(companyID) == "" {
		return domain.DeliveryCompany{}, errors.New("company id is required")
	}

	doc, err := r.base.Get(ctx, companyID)
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	return hydrateCompany(doc), nil
}

// FindByCode loads the company by its unique code, matching case-insensitively.
func (r *CompanyRepository) FindByCode(ctx context.Context, code string) (domain.DeliveryCompany, error) {
	if r == nil || r.base == nil {
		return domain.DeliveryCompany{}, errors.New("company repository not initialised")
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return domain.DeliveryCompany{}, errors.New("company code is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	if len(docs) == 0 {
		return domain.DeliveryCompany{}, pfirestore.WrapError("companies.findByCode",
			status.Error(codes.NotFound, "company not found"))
	}
	return hydrateCompany(docs[0]), nil
}

// FindDefault returns the active default company.
func (r *CompanyRepository) FindDefault(ctx context.Context) (domain.DeliveryCompany, error) {
	if r == nil || r.base == nil {
		return domain.DeliveryCompany{}, errors.New("company repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isDefault", "==", true).Where("isActive", "==", true).Limit(1)
	})
	if err != nil {
		return domain.DeliveryCompany{}, err
	}
	if len(docs) == 0 {
		return domain.DeliveryCompany{}, pfirestore.WrapError("companies.findDefault",
			status.Error(codes.NotFound, "no default company configured"))
	}
	return hydrateCompany(docs[0]), nil
}

// List returns a cursor page of companies ordered by name.
func (r *CompanyRepository) List(ctx context.Context, filter repositories.CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.DeliveryCompany]{}, errors.New("company repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultCompanyPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.DeliveryCompany]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("isActive", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.DeliveryCompany]{}, err
	}

	page := domain.CursorPage[domain.DeliveryCompany]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[i-1]
			token, err := pagination.EncodeToken(pagination.Cursor{
				StartAfter: []any{last.Data.Name, last.ID},
			})
			if err != nil {
				return domain.CursorPage[domain.DeliveryCompany]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, hydrateCompany(doc))
	}
	return page, nil
}

// ClearDefaults unsets the default flag on every company except keepID so at
// most one default exists after a default company write.
func (r *CompanyRepository) ClearDefaults(ctx context.Context, keepID string) error {
	if r == nil || r.provider == nil {
		return errors.New("company repository not initialised")
	}
	keepID = strings.TrimSpace(keepID)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := client.Collection(companyCollection).Where("isDefault", "==", true)
		iter := tx.Documents(query)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			if snap.Ref.ID == keepID {
				continue
			}
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "isDefault", Value: false},
				{Path: "updatedAt", Value: time.Now().UTC()},
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

type companyDocument struct {
	Code           string                  `firestore:"code"`
	Name           string                  `firestore:"name"`
	IsActive       bool                    `firestore:"isActive"`
	IsDefault      bool                    `firestore:"isDefault"`
	API            apiConfigDocument       `firestore:"apiConfiguration"`
	Credentials    credentialsDocument     `firestore:"credentials,omitempty"`
	FieldMappings  []fieldMappingDocument  `firestore:"fieldMappings,omitempty"`
	StatusMappings []statusMappingDocument `firestore:"statusMappings,omitempty"`
	AreaMappings   []areaMappingDocument   `firestore:"areaMappings,omitempty"`
	CustomFields   map[string]string       `firestore:"customFields,omitempty"`
	CreatedAt      time.Time               `firestore:"createdAt"`
	UpdatedAt      time.Time               `firestore:"updatedAt"`
}

type apiConfigDocument struct {
	URL            string            `firestore:"url"`
	Transport      string            `firestore:"transport"`
	Method         string            `firestore:"method,omitempty"`
	HTTPMethod     string            `firestore:"httpMethod,omitempty"`
	AuthMethod     string            `firestore:"authMethod,omitempty"`
	Username       string            `firestore:"username,omitempty"`
	Password       string            `firestore:"password,omitempty"`
	Token          string            `firestore:"token,omitempty"`
	APIKey         string            `firestore:"apiKey,omitempty"`
	APIKeyHeader   string            `firestore:"apiKeyHeader,omitempty"`
	Params         map[string]string `firestore:"params,omitempty"`
	QueryParams    map[string]string `firestore:"queryParams,omitempty"`
	Headers        map[string]string `firestore:"headers,omitempty"`
	RequiredParams []string          `firestore:"requiredParams,omitempty"`
	TimeoutMS      int               `firestore:"timeoutMs,omitempty"`
	OmitMethod     bool              `firestore:"omitMethod,omitempty"`
}

type credentialsDocument struct {
	Login    string `firestore:"login,omitempty"`
	Password string `firestore:"password,omitempty"`
	Database string `firestore:"database,omitempty"`
}

type fieldMappingDocument struct {
	CompanyField  string `firestore:"companyField"`
	InternalField string `firestore:"internalField"`
	Required      bool   `firestore:"required"`
}

type statusMappingDocument struct {
	CompanyStatus  string `firestore:"companyStatus"`
	InternalStatus string `firestore:"internalStatus"`
}

type areaMappingDocument struct {
	Level       string   `firestore:"level"`
	AreaID      string   `firestore:"areaId,omitempty"`
	AreaName    string   `firestore:"areaName,omitempty"`
	SubAreaID   string   `firestore:"subAreaId,omitempty"`
	SubAreaName string   `firestore:"subAreaName,omitempty"`
	StoreCities []string `firestore:"storeCities,omitempty"`
}

func hydrateCompany(doc pfirestore.Document[companyDocument]) domain.DeliveryCompany {
	company := toDomainCompany(doc.Data)
	company.ID = doc.ID
	company.LastSyncTime = doc.UpdateTime
	if company.CreatedAt.IsZero() {
		company.CreatedAt = doc.CreateTime
	}
	if company.UpdatedAt.IsZero() {
		company.UpdatedAt = doc.UpdateTime
	}
	return company
}

func toDomainCompany(doc companyDocument) domain.DeliveryCompany {
	company := domain.DeliveryCompany{
		Code:      strings.TrimSpace(doc.Code),
		Name:      strings.TrimSpace(doc.Name),
		IsActive:  doc.IsActive,
		IsDefault: doc.IsDefault,
		APIConfiguration: domain.APIConfiguration{
			URL:       strings.TrimSpace(doc.API.URL),
			Transport: domain.NormalizeTransport(doc.API.Transport),
			Method:    strings.TrimSpace(doc.API.Method),
			Auth: domain.APIAuth{
				Method:       domain.AuthMethod(strings.TrimSpace(doc.API.AuthMethod)),
				Username:     doc.API.Username,
				Password:     doc.API.Password,
				Token:        doc.API.Token,
				APIKey:       doc.API.APIKey,
				APIKeyHeader: strings.TrimSpace(doc.API.APIKeyHeader),
			},
			HTTPMethod:     strings.TrimSpace(doc.API.HTTPMethod),
			Params:         doc.API.Params,
			QueryParams:    doc.API.QueryParams,
			Headers:        doc.API.Headers,
			RequiredParams: doc.API.RequiredParams,
			TimeoutMS:      doc.API.TimeoutMS,
			OmitMethod:     doc.API.OmitMethod,
		},
		Credentials: domain.CompanyCredentials{
			Login:    doc.Credentials.Login,
			Password: doc.Credentials.Password,
			Database: doc.Credentials.Database,
		},
		CustomFields: doc.CustomFields,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	for _, m := range doc.FieldMappings {
		company.FieldMappings = append(company.FieldMappings, domain.FieldMapping{
			CompanyField:  strings.TrimSpace(m.CompanyField),
			InternalField: strings.TrimSpace(m.InternalField),
			Required:      m.Required,
		})
	}
	for _, m := range doc.StatusMappings {
		company.StatusMappings = append(company.StatusMappings, domain.StatusMapping{
			CompanyStatus:  strings.TrimSpace(m.CompanyStatus),
			InternalStatus: strings.TrimSpace(m.InternalStatus),
		})
	}
	for _, m := range doc.AreaMappings {
		company.AreaMappings = append(company.AreaMappings, domain.AreaMapping{
			Level:       domain.AreaMappingLevel(strings.TrimSpace(m.Level)),
			AreaID:      strings.TrimSpace(m.AreaID),
			AreaName:    strings.TrimSpace(m.AreaName),
			SubAreaID:   strings.TrimSpace(m.SubAreaID),
			SubAreaName: strings.TrimSpace(m.SubAreaName),
			StoreCities: m.StoreCities,
		})
	}
	return company
}

func fromDomainCompany(company domain.DeliveryCompany, now time.Time) companyDocument {
	doc := companyDocument{
		Code:      strings.ToLower(strings.TrimSpace(company.Code)),
		Name:      strings.TrimSpace(company.Name),
		IsActive:  company.IsActive,
		IsDefault: company.IsDefault,
		API: apiConfigDocument{
			URL:            strings.TrimSpace(company.APIConfiguration.URL),
			Transport:      string(domain.NormalizeTransport(string(company.APIConfiguration.Transport))),
			Method:         strings.TrimSpace(company.APIConfiguration.Method),
			HTTPMethod:     strings.TrimSpace(company.APIConfiguration.HTTPMethod),
			AuthMethod:     string(company.APIConfiguration.Auth.Method),
			Username:       company.APIConfiguration.Auth.Username,
			Password:       company.APIConfiguration.Auth.Password,
			Token:          company.APIConfiguration.Auth.Token,
			APIKey:         company.APIConfiguration.Auth.APIKey,
			APIKeyHeader:   strings.TrimSpace(company.APIConfiguration.Auth.APIKeyHeader),
			Params:         company.APIConfiguration.Params,
			QueryParams:    company.APIConfiguration.QueryParams,
			Headers:        company.APIConfiguration.Headers,
			RequiredParams: company.APIConfiguration.RequiredParams,
			TimeoutMS:      company.APIConfiguration.TimeoutMS,
			OmitMethod:     company.APIConfiguration.OmitMethod,
		},
		Credentials: credentialsDocument{
			Login:    company.Credentials.Login,
			Password: company.Credentials.Password,
			Database: company.Credentials.Database,
		},
		CustomFields: company.CustomFields,
		CreatedAt:    company.CreatedAt,
		UpdatedAt:    now,
	}
	for _, m := range company.FieldMappings {
		if strings.TrimSpace(m.CompanyField) == "" || strings.TrimSpace(m.InternalField) == "" {
			continue
		}
		doc.FieldMappings = append(doc.FieldMappings, fieldMappingDocument{
			CompanyField:  strings.TrimSpace(m.CompanyField),
			InternalField: strings.TrimSpace(m.InternalField),
			Required:      m.Required,
		})
	}
	// Entries with either side blank are scrubbed before persistence.
	for _, m := range company.StatusMappings {
		if strings.TrimSpace(m.CompanyStatus) == "" || strings.TrimSpace(m.InternalStatus) == "" {
			continue
		}
		doc.StatusMappings = append(doc.StatusMappings, statusMappingDocument{
			CompanyStatus:  strings.TrimSpace(m.CompanyStatus),
			InternalStatus: strings.TrimSpace(m.InternalStatus),
		})
	}
	for _, m := range company.AreaMappings {
		doc.AreaMappings = append(doc.AreaMappings, areaMappingDocument{
			Level:       string(m.Level),
			AreaID:      strings.TrimSpace(m.AreaID),
			AreaName:    strings.TrimSpace(m.AreaName),
			SubAreaID:   strings.TrimSpace(m.SubAreaID),
			SubAreaName: strings.TrimSpace(m.SubAreaName),
			StoreCities: m.StoreCities,
		})
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *CompanyRepository) CollectionName() string {
	return companyCollection
}
