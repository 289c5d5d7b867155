// Package hunter looks up a domain's email pattern with the Hunter.io
// domain-search API.
package hunter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"mailscout/internal/pattern"
	"mailscout/internal/platform/config"
	"mailscout/internal/verification/ports"
	"mailscout/internal/verification/providers"
)

// Name is the provider label used in logs, metrics and outcomes.
const Name = "hunter"

// Client implements ports.PatternProvider.
type Client struct {
	baseURL string
	apiKey  config.Secret
	http    *http.Client
	guard   *providers.Guard
}

// New builds a client. Every call goes through guard.
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

var _ ports.PatternProvider = (*Client)(nil)

// DomainPattern returns Hunter's pattern for domain with its share among the
// named addresses Hunter lists. A domain without a pattern is a not_found error.
func (c *Client) DomainPattern(ctx context.Context, domain string) (ports.PatternInfo, error) {
	var info ports.PatternInfo
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("domain", domain)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain-search?"+q.Encode(), nil)
		if err != nil {
			return providers.NewError(providers.CategoryInternal, Name, "build request", providers.RedactURL(err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey.Reveal())

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
		info, err = parseDomainSearch(body)
		return err
	})
	return info, err
}

type domainSearchResponse struct {
	Data struct {
		Domain  string `json:"domain"`
		Pattern string `json:"pattern"`
		Emails  []struct {
			Value     string `json:"value"`
			Type      string `json:"type"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"emails"`
	} `json:"data"`
	Meta struct {
		Results int `json:"results"`
	} `json:"meta"`
}

func parseDomainSearch(body []byte) (ports.PatternInfo, error) {
	var resp domainSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.PatternInfo{}, providers.NewError(providers.CategoryBadData, Name, "decode domain-search response", err)
	}
	if resp.Data.Pattern == "" {
		return ports.PatternInfo{}, providers.NewError(providers.CategoryNotFound, Name, "no pattern for "+resp.Data.Domain, nil)
	}
	p, ok := pattern.FromProviderTemplate(resp.Data.Pattern)
	if !ok {
		return ports.PatternInfo{}, providers.NewError(providers.CategoryNotFound, Name, "unsupported pattern "+resp.Data.Pattern, nil)
	}

	info := ports.PatternInfo{Pattern: p}
	var named, matching int
	for _, e := range resp.Data.Emails {
		if e.Type == "generic" {
			continue
		}
		local, _, found := strings.Cut(e.Value, "@")
		if !found {
			continue
		}
		got, ok := pattern.Classify(local, e.FirstName, e.LastName)
		if !ok {
			continue
		}
		named++
		if got == p {
			matching++
		}
	}
	if matching > 0 {
		info.PercentageOfContacts = 100 * float64(matching) / float64(named)
		info.Samples = matching
	} else if resp.Meta.Results > 0 {
		info.Samples = resp.Meta.Results
	}
	return info, nil
}
