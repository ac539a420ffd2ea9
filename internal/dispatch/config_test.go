package dispatch

import (
	"strings"
	"testing"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

func validCompany() *domain.DeliveryCompany {
	return &domain.DeliveryCompany{
		Code: "alpha",
		APIConfiguration: domain.APIConfiguration{
			URL: "https://api.alpha.example/v1/orders",
			Auth: domain.APIAuth{
				Method: domain.AuthBearer,
				Token:  "tok",
			},
		},
	}
}

func TestValidateCompanyConfigurationOK(t *testing.T) {
	report := ValidateCompanyConfiguration(validCompany())
	if !report.OK {
		t.Fatalf("issues: %v", report.Issues)
	}
	if report.Mode != domain.TransportRest {
		t.Fatalf("mode = %q, want rest", report.Mode)
	}
}

func TestValidateCompanyConfigurationIssues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.DeliveryCompany)
		want   string
	}{
		{
			name:   "missing url",
			mutate: func(c *domain.DeliveryCompany) { c.APIConfiguration.URL = "  " },
			want:   "api url is missing",
		},
		{
			name:   "bad scheme",
			mutate: func(c *domain.DeliveryCompany) { c.APIConfiguration.URL = "ftp://alpha.example" },
			want:   "not a valid http(s) url",
		},
		{
			name: "basic without password",
			mutate: func(c *domain.DeliveryCompany) {
				c.APIConfiguration.Auth = domain.APIAuth{Method: domain.AuthBasic, Username: "u"}
			},
			want: "basic auth requires a password",
		},
		{
			name: "bearer without token",
			mutate: func(c *domain.DeliveryCompany) {
				c.APIConfiguration.Auth = domain.APIAuth{Method: domain.AuthBearer}
			},
			want: "bearer auth requires a token",
		},
		{
			name: "api key without key",
			mutate: func(c *domain.DeliveryCompany) {
				c.APIConfiguration.Auth = domain.APIAuth{Method: domain.AuthAPIKey}
			},
			want: "api key auth requires a key",
		},
		{
			name: "unresolved required parameter",
			mutate: func(c *domain.DeliveryCompany) {
				c.APIConfiguration.RequiredParams = []string{"merchantId"}
			},
			want: `required parameter "merchantId" has no value`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			company := validCompany()
			tc.mutate(company)
			report := ValidateCompanyConfiguration(company)
			if report.OK {
				t.Fatal("expected issues")
			}
			found := false
			for _, issue := range report.Issues {
				if strings.Contains(issue, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("issues %v do not contain %q", report.Issues, tc.want)
			}
		})
	}
}

func TestValidateCompanyConfigurationNilCompany(t *testing.T) {
	report := ValidateCompanyConfiguration(nil)
	if report.OK || len(report.Issues) == 0 {
		t.Fatalf("nil company must fail, got %#v", report)
	}
}

func TestResolveParamPrecedence(t *testing.T) {
	company := validCompany()
	company.APIConfiguration.Params = map[string]string{"db": "from-params"}
	company.Credentials = domain.CompanyCredentials{Database: "from-creds", Login: "merchant"}
	company.CustomFields = map[string]string{"db": "from-custom", "zone": "south"}
	company.APIConfiguration.QueryParams = map[string]string{"zone": "ignored", "channel": "web"}
	env := map[string]string{"db": "from-env"}

	cases := []struct {
		name       string
		param      string
		wantValue  string
		wantSource ParamSource
	}{
		{"explicit params win", "db", "from-params", ParamSourceParams},
		{"credentials", "login", "merchant", ParamSourceCredentials},
		{"custom fields", "zone", "from-custom", ParamSourceCustomFields},
		{"query params last", "channel", "web", ParamSourceQueryParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := ResolveParam(company, env, tc.param)
			if !ok {
				t.Fatalf("param %q not resolved", tc.param)
			}
			if res.Value != tc.wantValue || res.Source != tc.wantSource {
				t.Fatalf("got %q from %q, want %q from %q", res.Value, res.Source, tc.wantValue, tc.wantSource)
			}
		})
	}

	// Env sits between explicit params and credentials.
	company.APIConfiguration.Params = nil
	res, ok := ResolveParam(company, env, "db")
	if !ok || res.Source != ParamSourceEnv || res.Value != "from-env" {
		t.Fatalf("env override not honoured: %#v", res)
	}

	if _, ok := ResolveParam(company, nil, "nothing"); ok {
		t.Fatal("unknown param must not resolve")
	}
}

func TestValidateCompanyConfigurationEnvOverrides(t *testing.T) {
	company := validCompany()
	company.APIConfiguration.RequiredParams = []string{"db"}

	if report := ValidateCompanyConfiguration(company); report.OK {
		t.Fatal("db should be unresolved without env")
	}
	report := ValidateCompanyConfiguration(company, WithEnvOverrides(map[string]string{"db": "prod"}))
	if !report.OK {
		t.Fatalf("env override should satisfy required param, issues: %v", report.Issues)
	}
}

func TestResolveTransport(t *testing.T) {
	cases := []struct {
		name string
		cfg  domain.APIConfiguration
		want domain.Transport
	}{
		{"explicit jsonrpc", domain.APIConfiguration{Transport: "json-rpc"}, domain.TransportJSONRPC},
		{"method implies jsonrpc", domain.APIConfiguration{Method: "create_order"}, domain.TransportJSONRPC},
		{"omit method implies jsonrpc", domain.APIConfiguration{OmitMethod: true}, domain.TransportJSONRPC},
		{"default rest", domain.APIConfiguration{}, domain.TransportRest},
	}
	for _, tc := range cases {
		if got := resolveTransport(tc.cfg); got != tc.want {
			t.Errorf("%s: resolveTransport = %q, want %q", tc.name, got, tc.want)
		}
	}
}
