package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultAPIKeyHeader = "x-api-key"
	maxResponseBytes    = 1 << 20
)

// jsonrpc identity keys that, once established from configuration or
// credentials, are never overridden by the mapping payload.
var identityParamKeys = map[string]struct{}{
	"login":    {},
	"password": {},
	"db":       {},
}

// SenderLogger is the logging contract for outbound provider calls.
type SenderLogger func(ctx context.Context, event string, fields map[string]any)

// Result reports a successful dispatch to a delivery company.
type Result struct {
	TrackingNumber string
	ProviderStatus string
	Adapter        string
	Response       map[string]any
}

// SenderConfig configures the Sender.
type SenderConfig struct {
	HTTPClient *http.Client
	Adapters   []ResponseAdapter
	Logger     SenderLogger
}

// Sender builds and executes the outbound HTTP call to a delivery company.
// It performs exactly one call per Send and persists nothing; callers own the
// resulting order mutation.
type Sender struct {
	httpc    *http.Client
	adapters []ResponseAdapter
	logger   SenderLogger
}

// NewSender constructs a Sender using the given configuration.
func NewSender(cfg SenderConfig) *Sender {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	adapters := cfg.Adapters
	if len(adapters) == 0 {
		adapters = DefaultAdapters()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Sender{httpc: httpc, adapters: adapters, logger: logger}
}

// Send dispatches the prepared mapping payload to the company and extracts a
// tracking number and provider status from the response. Failures surface as
// *ProviderError carrying the upstream HTTP status and raw body.
func (s *Sender) Send(ctx context.Context, company *domain.DeliveryCompany, payload map[string]any) (Result, error) {
	if s == nil {
		return Result{}, errors.New("dispatch: sender is nil")
	}
	if company == nil {
		return Result{}, errors.New("dispatch: company is required")
	}

	cfg := company.APIConfiguration
	baseURL := strings.TrimSpace(cfg.URL)
	if !isHTTPURL(baseURL) {
		return Result{}, fmt.Errorf("dispatch: company %s has no valid api url", company.Code)
	}

	timeout := defaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var req *http.Request
	var err error
	if resolveTransport(cfg) == domain.TransportJSONRPC {
		req, err = s.buildJSONRPCRequest(callCtx, company, baseURL, payload)
	} else {
		req, err = s.buildRESTRequest(callCtx, company, baseURL, payload)
	}
	if err != nil {
		return Result{}, err
	}

	applyAuth(req, cfg.Auth)
	for name, value := range SanitizeHeaders(cfg.Headers) {
		req.Header.Set(name, value)
	}

	s.logger(ctx, "provider request", map[string]any{
		"company": company.Code,
		"url":     req.URL.Redacted(),
		"method":  req.Method,
	})

	resp, err := s.httpc.Do(req)
	if err != nil {
		return Result{}, &ProviderError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &ProviderError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	decoded := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			// Non-JSON success bodies are kept raw; some providers answer
			// with a bare tracking number.
			decoded = map[string]any{"raw": strings.TrimSpace(string(body))}
			if tracking := strings.TrimSpace(string(body)); tracking != "" && !strings.ContainsAny(tracking, "{}[]<>") {
				decoded["trackingNumber"] = tracking
			}
		}
	}

	result := Result{Response: decoded}
	for _, adapter := range s.adapters {
		if !adapter.Matches(company) {
			continue
		}
		if extraction, ok := adapter.Extract(decoded); ok {
			result.TrackingNumber = extraction.TrackingNumber
			result.ProviderStatus = extraction.ProviderStatus
			result.Adapter = adapter.Name()
			break
		}
		result.Adapter = adapter.Name()
		break
	}
	if result.ProviderStatus == "" {
		result.ProviderStatus = string(domain.DeliveryStatusAssigned)
	}

	return result, nil
}

// buildJSONRPCRequest assembles the POST envelope {jsonrpc, method?, params}.
// The params merge, in increasing precedence: configured params, company
// credentials (login/password/db), then the mapping payload — except identity
// keys already established, which the payload never overrides.
func (s *Sender) buildJSONRPCRequest(ctx context.Context, company *domain.DeliveryCompany, baseURL string, payload map[string]any) (*http.Request, error) {
	cfg := company.APIConfiguration

	endpoint, method := splitRPCMethod(baseURL, cfg.Method)

	params := map[string]any{}
	for key, value := range cfg.Params {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			params[key] = trimmed
		}
	}
	if login := strings.TrimSpace(company.Credentials.Login); login != "" {
		params["login"] = login
	}
	if password := strings.TrimSpace(company.Credentials.Password); password != "" {
		params["password"] = password
	}
	if db := strings.TrimSpace(company.Credentials.Database); db != "" {
		params["db"] = db
	}
	if override := strings.TrimSpace(company.CustomFields["db"]); override != "" {
		params["db"] = override
	}
	for key, value := range payload {
		if _, identity := identityParamKeys[key]; identity {
			if existing, ok := params[key]; ok && existing != "" {
				continue
			}
		}
		params[key] = value
	}

	envelope := map[string]any{
		"jsonrpc": "2.0",
		"params":  params,
	}
	if method != "" && !cfg.OmitMethod {
		envelope["method"] = method
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("dispatch: marshal jsonrpc envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build jsonrpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (s *Sender) buildRESTRequest(ctx context.Context, company *domain.DeliveryCompany, baseURL string, payload map[string]any) (*http.Request, error) {
	cfg := company.APIConfiguration

	httpMethod := strings.ToUpper(strings.TrimSpace(cfg.HTTPMethod))
	if httpMethod == "" {
		httpMethod = http.MethodPost
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: parse api url: %w", err)
	}
	query := parsed.Query()
	for key, value := range cfg.QueryParams {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			query.Set(key, trimmed)
		}
	}

	var body io.Reader
	if httpMethod == http.MethodGet {
		for key, value := range payload {
			query.Set(key, fmt.Sprint(value))
		}
	} else {
		merged := maps.Clone(payload)
		if merged == nil {
			merged = map[string]any{}
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("dispatch: marshal rest payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, httpMethod, parsed.String(), body)
	if err != nil {
		return nil, fmt.Errorf("dispatch: build rest request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// splitRPCMethod extracts the RPC method name. When the configured method is
// itself a full URL, its last path segment becomes the method and the URL's
// origin plus remaining path becomes the effective endpoint.
func splitRPCMethod(baseURL, method string) (endpoint string, name string) {
	method = strings.TrimSpace(method)
	if method == "" {
		return baseURL, ""
	}
	if !strings.HasPrefix(method, "http://") && !strings.HasPrefix(method, "https://") {
		return baseURL, method
	}

	parsed, err := url.Parse(method)
	if err != nil || parsed.Host == "" {
		return baseURL, method
	}
	trimmedPath := strings.TrimSuffix(parsed.Path, "/")
	idx := strings.LastIndex(trimmedPath, "/")
	if idx < 0 {
		return baseURL, method
	}
	name = trimmedPath[idx+1:]
	parsed.Path = trimmedPath[:idx]
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), name
}

func applyAuth(req *http.Request, auth domain.APIAuth) {
	switch auth.Method {
	case domain.AuthBasic:
		req.SetBasicAuth(strings.TrimSpace(auth.Username), strings.TrimSpace(auth.Password))
	case domain.AuthBearer:
		if token := strings.TrimSpace(auth.Token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case domain.AuthAPIKey:
		header := strings.TrimSpace(auth.APIKeyHeader)
		if header == "" {
			header = defaultAPIKeyHeader
		}
		if key := strings.TrimSpace(auth.APIKey); key != "" {
			req.Header.Set(header, key)
		}
	}
}

// SanitizeHeaders filters stored configuration headers before they are
// attached to an outbound request. Company records are operator-editable, so
// this is a security control against header injection from stored
// configuration, not cosmetic cleanup: keys starting with "$", keys or values
// containing control characters, and values carrying a "$__" template marker
// are dropped.
func SanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	clean := make(map[string]string, len(headers))
	for name, value := range headers {
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		if strings.HasPrefix(name, "$") {
			continue
		}
		if hasControlChars(name) || hasControlChars(value) {
			continue
		}
		if strings.Contains(value, "$__") {
			continue
		}
		clean[name] = value
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r == '\r' || r == '\n' || r < 0x20 {
			return true
		}
	}
	return false
}
