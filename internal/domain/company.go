package domain

import (
	"strings"
	"time"
)

// Transport enumerates the outbound protocols supported for delivery companies.
type Transport string

const (
	// TransportRest sends plain REST requests (GET with query params or POST with a JSON body).
	TransportRest Transport = "rest"
	// TransportJSONRPC sends a JSON-RPC 2.0 envelope via POST.
	TransportJSONRPC Transport = "jsonrpc"
)

// NormalizeTransport folds legacy spellings ("json", "json-rpc") into the canonical values.
func NormalizeTransport(raw string) Transport {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "jsonrpc", "json-rpc", "json":
		return TransportJSONRPC
	case "rest", "":
		return TransportRest
	default:
		return Transport(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// AuthMethod enumerates the authentication schemes for outbound provider calls.
type AuthMethod string

const (
	// AuthNone sends no authentication.
	AuthNone AuthMethod = "none"
	// AuthBasic sends HTTP basic authentication.
	AuthBasic AuthMethod = "basic"
	// AuthBearer sends an Authorization: Bearer header.
	AuthBearer AuthMethod = "bearer"
	// AuthAPIKey sends the key in a custom header (default x-api-key).
	AuthAPIKey AuthMethod = "apiKey"
)

// APIAuth groups the credential fields consulted per AuthMethod.
type APIAuth struct {
	Method       AuthMethod
	Username     string
	Password     string
	Token        string
	APIKey       string
	APIKeyHeader string
}

// APIConfiguration describes how to reach a delivery company's API.
//
// Transport and auth are validated when the company record is written, not at
// every dispatch; the dispatch layer can assume a well-formed configuration for
// companies that passed CompanyService writes, but still re-checks before sending
// because records predating validation may exist.
type APIConfiguration struct {
	URL            string
	Transport      Transport
	Method         string
	Auth           APIAuth
	HTTPMethod     string
	Params         map[string]string
	QueryParams    map[string]string
	Headers        map[string]string
	RequiredParams []string
	TimeoutMS      int
	OmitMethod     bool
}

// CompanyCredentials holds JSON-RPC session-style identity fields, kept separate
// from APIConfiguration.Auth because both may be consulted for the same company.
type CompanyCredentials struct {
	Login    string
	Password string
	Database string
}

// FieldMapping maps an order attribute onto a provider payload key.
type FieldMapping struct {
	CompanyField  string
	InternalField string
	Required      bool
}

// StatusMapping pairs a provider-native status with an internal delivery status.
// Entries with either side empty after trim are discarded before persistence.
type StatusMapping struct {
	CompanyStatus  string
	InternalStatus string
}

// AreaMappingLevel distinguishes area-level from sub-area-level geography entries.
type AreaMappingLevel string

const (
	// AreaLevelArea maps a provider area.
	AreaLevelArea AreaMappingLevel = "area"
	// AreaLevelSubArea maps a provider sub-area.
	AreaLevelSubArea AreaMappingLevel = "subArea"
)

// AreaMapping links provider geography identifiers to store cities.
type AreaMapping struct {
	Level       AreaMappingLevel
	AreaID      string
	AreaName    string
	SubAreaID   string
	SubAreaName string
	StoreCities []string
}

// DeliveryCompany is a configured external carrier.
type DeliveryCompany struct {
	ID               string
	Code             string
	Name             string
	IsActive         bool
	IsDefault        bool
	APIConfiguration APIConfiguration
	Credentials      CompanyCredentials
	FieldMappings    []FieldMapping
	StatusMappings   []StatusMapping
	AreaMappings     []AreaMapping
	CustomFields     map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// LastSyncTime carries the storage update time used as an optimistic
	// locking precondition on writes.
	LastSyncTime time.Time
}
