// Package neverbounce checks single addresses for deliverability with the
// NeverBounce v4 API.
package neverbounce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"mailscout/internal/platform/config"
	"mailscout/internal/verification/ports"
	"mailscout/internal/verification/providers"
)

const Name = "neverbounce"

// Client implements ports.Validator.
type Client struct {
	baseURL string
	apiKey  config.Secret
	http    *http.Client
	guard   *providers.Guard
}

func New(baseURL string, apiKey config.Secret, httpClient *http.Client, guard *providers.Guard) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		guard:   guard,
	}
}

var _ ports.Validator = (*Client)(nil)

// Validate runs a single check.
func (c *Client) Validate(ctx context.Context, address string) (ports.ValidationResult, error) {
	var result ports.ValidationResult
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("key", c.apiKey.Reveal())
		q.Set("email", address)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/single/check?"+q.Encode(), nil)
		if err != nil {
			return providers.NewError(providers.CategoryInternal, Name, "build request", providers.RedactURL(err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return providers.ClassifyTransport(Name, err)
		}
		defer resp.Body.Close()

		if err := providers.ClassifyStatus(Name, resp); err != nil {
			return err
		}
		body, err := providers.ReadBody(Name, resp)
		if err != nil {
			return err
		}
		result, err = parseSingleCheck(body)
		return err
	})
	return result, err
}

type singleCheckResponse struct {
	Status  string   `json:"status"`
	Result  string   `json:"result"`
	Flags   []string `json:"flags"`
	Message string   `json:"message"`
}

// NeverBounce reports API failures with HTTP 200 and a non-success status.
func parseSingleCheck(body []byte) (ports.ValidationResult, error) {
	var resp singleCheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewError(providers.CategoryBadData, Name, "decode single check response", err)
	}

	switch resp.Status {
	case "success":
	case "auth_failure", "bad_referrer":
		return "", providers.NewError(providers.CategoryAuthentication, Name, resp.Message, nil)
	case "throttle_triggered":
		return "", providers.NewError(providers.CategoryRateLimited, Name, resp.Message, nil)
	case "temp_unavail":
		return "", providers.NewError(providers.CategoryProviderOutage, Name, resp.Message, nil)
	default:
		if strings.Contains(strings.ToLower(resp.Message), "credit") {
			return "", providers.NewError(providers.CategoryQuotaExceeded, Name, resp.Message, nil)
		}
		return "", providers.NewError(providers.CategoryBadData, Name, "status "+resp.Status+": "+resp.Message, nil)
	}

	switch resp.Result {
	case "valid":
		return ports.ResultValid, nil
	case "invalid":
		return ports.ResultInvalid, nil
	case "catchall", "disposable":
		return ports.ResultRisky, nil
	case "unknown":
		return ports.ResultUnknown, nil
	default:
		return "", providers.NewError(providers.CategoryBadData, Name, "unexpected result "+resp.Result, nil)
	}
}
