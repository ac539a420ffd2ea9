package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

// ConfigReport is the structured result of validating a company's API
// configuration. Mode reports the resolved transport for display purposes.
type ConfigReport struct {
	OK     bool
	Issues []string
	Mode   domain.Transport
	URL    string
}

// ParamResolution records where a required parameter's value was found.
type ParamResolution struct {
	Name   string
	Value  string
	Source ParamSource
}

// ParamSource names the configuration bucket that supplied a parameter value.
type ParamSource string

const (
	// ParamSourceParams resolves from explicit apiConfiguration params.
	ParamSourceParams ParamSource = "params"
	// ParamSourceEnv resolves from an environment-driven override.
	ParamSourceEnv ParamSource = "env"
	// ParamSourceCredentials resolves from the company credentials record.
	ParamSourceCredentials ParamSource = "credentials"
	// ParamSourceCustomFields resolves from the company's custom fields.
	ParamSourceCustomFields ParamSource = "customFields"
	// ParamSourceQueryParams resolves from configured query parameters.
	ParamSourceQueryParams ParamSource = "queryParams"
)

// ConfigOption customises configuration validation.
type ConfigOption func(*configCheck)

type configCheck struct {
	env map[string]string
}

// WithEnvOverrides supplies environment-driven parameter overrides (for
// example the deployment-wide default "db" value) consulted between explicit
// params and company credentials.
func WithEnvOverrides(env map[string]string) ConfigOption {
	return func(c *configCheck) {
		c.env = env
	}
}

// ValidateCompanyConfiguration checks whether a company's API configuration is
// minimally sufficient to attempt a send. Pure function of its inputs; it
// never mutates the company record.
func ValidateCompanyConfiguration(company *domain.DeliveryCompany, opts ...ConfigOption) ConfigReport {
	check := configCheck{}
	for _, opt := range opts {
		if opt != nil {
			opt(&check)
		}
	}

	report := ConfigReport{Issues: []string{}}
	if company == nil {
		report.Issues = append(report.Issues, "company is not configured")
		return report
	}

	cfg := company.APIConfiguration
	report.Mode = resolveTransport(cfg)
	report.URL = strings.TrimSpace(cfg.URL)

	if report.URL == "" {
		report.Issues = append(report.Issues, "api url is missing")
	} else if !isHTTPURL(report.URL) {
		report.Issues = append(report.Issues, fmt.Sprintf("api url %q is not a valid http(s) url", report.URL))
	}

	switch cfg.Auth.Method {
	case domain.AuthBasic:
		if strings.TrimSpace(cfg.Auth.Username) == "" {
			report.Issues = append(report.Issues, "basic auth requires a username")
		}
		if strings.TrimSpace(cfg.Auth.Password) == "" {
			report.Issues = append(report.Issues, "basic auth requires a password")
		}
	case domain.AuthBearer:
		if strings.TrimSpace(cfg.Auth.Token) == "" {
			report.Issues = append(report.Issues, "bearer auth requires a token")
		}
	case domain.AuthAPIKey:
		if strings.TrimSpace(cfg.Auth.APIKey) == "" {
			report.Issues = append(report.Issues, "api key auth requires a key")
		}
	case domain.AuthNone, "":
	default:
		report.Issues = append(report.Issues, fmt.Sprintf("unknown auth method %q", cfg.Auth.Method))
	}

	for _, name := range cfg.RequiredParams {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := ResolveParam(company, check.env, name); !ok {
			report.Issues = append(report.Issues, fmt.Sprintf("required parameter %q has no value", name))
		}
	}

	report.OK = len(report.Issues) == 0
	return report
}

// ResolveParam looks a parameter up across the company's configuration
// buckets. Precedence: explicit params > environment override > credentials >
// custom fields > query params.
func ResolveParam(company *domain.DeliveryCompany, env map[string]string, name string) (ParamResolution, bool) {
	if company == nil {
		return ParamResolution{}, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ParamResolution{}, false
	}

	if value, ok := nonEmpty(company.APIConfiguration.Params[name]); ok {
		return ParamResolution{Name: name, Value: value, Source: ParamSourceParams}, true
	}
	if value, ok := nonEmpty(env[name]); ok {
		return ParamResolution{Name: name, Value: value, Source: ParamSourceEnv}, true
	}
	if value, ok := credentialValue(company.Credentials, name); ok {
		return ParamResolution{Name: name, Value: value, Source: ParamSourceCredentials}, true
	}
	if value, ok := nonEmpty(company.CustomFields[name]); ok {
		return ParamResolution{Name: name, Value: value, Source: ParamSourceCustomFields}, true
	}
	if value, ok := nonEmpty(company.APIConfiguration.QueryParams[name]); ok {
		return ParamResolution{Name: name, Value: value, Source: ParamSourceQueryParams}, true
	}
	return ParamResolution{Name: name}, false
}

func credentialValue(creds domain.CompanyCredentials, name string) (string, bool) {
	switch name {
	case "login", "username":
		return nonEmpty(creds.Login)
	case "password":
		return nonEmpty(creds.Password)
	case "db", "database":
		return nonEmpty(creds.Database)
	default:
		return "", false
	}
}

func resolveTransport(cfg domain.APIConfiguration) domain.Transport {
	transport := domain.NormalizeTransport(string(cfg.Transport))
	if transport == domain.TransportRest {
		if strings.TrimSpace(cfg.Method) != "" || cfg.OmitMethod {
			return domain.TransportJSONRPC
		}
	}
	return transport
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func nonEmpty(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, trimmed != ""
}
