// Package serpapi mines Google results (via SerpAPI) for published addresses
// at a domain and turns them into pattern hints.
package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"mailscout/internal/pattern"
	"mailscout/internal/platform/config"
	"mailscout/internal/verification/ports"
	"mailscout/internal/verification/providers"
)

const Name = "serpapi"

// Client implements ports.SearchProbe.
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

var _ ports.SearchProbe = (*Client)(nil)

// PatternHints searches for "@domain" and classifies every address found.
func (c *Client) PatternHints(ctx context.Context, domain string) ([]ports.PatternHint, error) {
	var hints []ports.PatternHint
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("engine", "google")
		q.Set("q", `"@`+domain+`"`)
		q.Set("num", "20")
		q.Set("api_key", c.apiKey.Reveal())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
		if err != nil {
			return providers.NewError(providers.CategoryInternal, Name, "build request", providers.RedactURL(err))
		}

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
		hints, err = parseSearch(body, domain)
		return err
	})
	return hints, err
}

type searchResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

var (
	addressRe = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	wordRe    = regexp.MustCompile(`\p{L}[\p{L}'-]*`)
)

func parseSearch(body []byte, domain string) ([]ports.PatternHint, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.NewError(providers.CategoryBadData, Name, "decode search response", err)
	}
	if resp.Error != "" {
		if strings.Contains(strings.ToLower(resp.Error), "run out of searches") {
			return nil, providers.NewError(providers.CategoryQuotaExceeded, Name, resp.Error, nil)
		}
		if strings.Contains(resp.Error, "hasn't returned any results") {
			return nil, nil
		}
		return nil, providers.NewError(providers.CategoryBadData, Name, resp.Error, nil)
	}

	seen := make(map[string]struct{})
	counts := make(map[pattern.Name]int)
	suffix := "@" + strings.ToLower(domain)
	for _, r := range resp.OrganicResults {
		text := r.Title + " " + r.Snippet
		words := wordRe.FindAllString(addressRe.ReplaceAllString(text, " "), -1)
		for _, addr := range addressRe.FindAllString(text, -1) {
			addr = strings.ToLower(strings.TrimRight(addr, "."))
			if !strings.HasSuffix(addr, suffix) {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			if p, ok := classify(strings.TrimSuffix(addr, suffix), words); ok {
				counts[p]++
			}
		}
	}

	var hints []ports.PatternHint
	for _, p := range pattern.Order {
		if n := counts[p]; n > 0 {
			hints = append(hints, ports.PatternHint{Pattern: p, Samples: n})
		}
	}
	return hints, nil
}

var roleAccounts = map[string]struct{}{
	"info": {}, "contact": {}, "sales": {}, "support": {}, "admin": {}, "hello": {},
	"office": {}, "jobs": {}, "careers": {}, "hr": {}, "marketing": {}, "press": {},
	"media": {}, "team": {}, "noreply": {}, "no-reply": {}, "webmaster": {},
	"billing": {}, "help": {}, "service": {}, "enquiries": {}, "privacy": {},
}

// classify names the template behind local. Adjacent words from the
// surrounding text are tried as first/last name first; without a name match
// only dotted shapes are unambiguous enough to count.
func classify(local string, words []string) (pattern.Name, bool) {
	if _, role := roleAccounts[local]; role {
		return "", false
	}
	for i := 0; i+1 < len(words); i++ {
		if p, ok := pattern.Classify(local, words[i], words[i+1]); ok {
			return p, true
		}
	}

	a, b, dotted := strings.Cut(local, ".")
	if !dotted || a == "" || b == "" || strings.ContainsAny(b, "._+") {
		return "", false
	}
	if len(a) == 1 {
		return pattern.FDotLast, true
	}
	return pattern.FirstDotLast, true
}
